// Package secmem holds the viewer password for a server run without letting
// it leak through formatting, logging or serialization.
package secmem

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const redacted = "[REDACTED]"

// Password is the shared secret viewers present in the auth parameter. An
// empty password admits everyone; a wiped one admits no one.
//
// Go's GC may copy the backing array, so Wipe is best-effort.
type Password struct {
	mu    sync.RWMutex
	data  []byte
	wiped atomic.Bool
}

// NewPassword copies s into a new Password.
func NewPassword(s string) *Password {
	b := make([]byte, len(s))
	copy(b, s)
	return &Password{data: b}
}

// Required reports whether viewers must authenticate.
func (p *Password) Required() bool {
	if p == nil {
		return false
	}
	if p.wiped.Load() {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data) > 0
}

// Matches compares candidate with the password in constant time.
func (p *Password) Matches(candidate string) bool {
	if p == nil {
		return true
	}
	if p.wiped.Load() {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.data) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(candidate), p.data) == 1
}

// Wipe overwrites the password in place. Every later Matches fails.
func (p *Password) Wipe() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.data)
	p.data = nil
	p.wiped.Store(true)
}

// Wiped reports whether Wipe has been called.
func (p *Password) Wiped() bool {
	return p != nil && p.wiped.Load()
}

func (p *Password) String() string   { return redacted }
func (p *Password) GoString() string { return redacted }

// Format makes every fmt verb print the redaction marker.
func (p *Password) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, redacted)
}

// LogValue keeps the password out of slog output.
func (p *Password) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (p *Password) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

func (p *Password) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalJSON refuses to populate a password from JSON.
func (p *Password) UnmarshalJSON([]byte) error {
	return fmt.Errorf("secmem: cannot deserialize into Password")
}
