// Package certs provisions the TLS certificate the stream server terminates
// HTTPS with: a self-signed certificate persisted on disk and reused until it
// expires or passes two thirds of its lifetime.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/breeze-rmm/deskcast/internal/logging"
	"github.com/breeze-rmm/deskcast/internal/netinfo"
)

const (
	CommonName = "deskcast"

	certFile   = "server.crt"
	keyFile    = "server.key"
	PublicFile = "deskcast.cer"

	validity = 10 * 365 * 24 * time.Hour
)

// ErrNoCertificate is returned when no usable certificate could be loaded or created.
var ErrNoCertificate = errors.New("no certificate available")

// Provider loads or creates the server certificate in a directory.
type Provider struct {
	dir   string
	log   *slog.Logger
	now   func() time.Time
	hosts func() (string, []net.IP)

	mu     sync.Mutex
	cached *tls.Certificate
}

// NewProvider returns a provider storing its files in dir.
func NewProvider(dir string, logger *slog.Logger) *Provider {
	return &Provider{
		dir:   dir,
		log:   logging.Or(logger, "certs"),
		now:   time.Now,
		hosts: localHosts,
	}
}

func localHosts() (string, []net.IP) {
	var ips []net.IP
	if addrs, err := netinfo.LANAddresses(); err == nil {
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	return netinfo.Hostname(), ips
}

// GetOrCreateCertificate returns the persisted certificate if it is still
// valid, otherwise generates, persists and returns a new one.
func (p *Provider) GetOrCreateCertificate() (*tls.Certificate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.usable(p.cached.Leaf) {
		return p.cached, nil
	}

	cert, err := p.load()
	switch {
	case err == nil && p.usable(cert.Leaf):
		p.log.Info("loaded certificate", "path", p.certPath(), "expires", cert.Leaf.NotAfter.Format(time.DateOnly))
		p.cached = cert
		return cert, nil
	case err == nil:
		p.log.Info("certificate expired, due for renewal or missing a current address, regenerating",
			"expires", cert.Leaf.NotAfter.Format(time.DateOnly), "sans", strings.Join(sanList(cert.Leaf), ","))
	case !errors.Is(err, os.ErrNotExist):
		p.log.Warn("stored certificate unusable, regenerating", logging.KeyError, err)
	}

	cert, err = p.create()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCertificate, err)
	}
	p.cached = cert
	return cert, nil
}

func (p *Provider) usable(leaf *x509.Certificate) bool {
	if leaf == nil {
		return false
	}
	now := p.now()
	if IsExpired(leaf.NotAfter, now) || NeedsRenewal(leaf.NotBefore, leaf.NotAfter, now) {
		return false
	}
	host, ips := p.hosts()
	return CoversHosts(leaf, host, ips)
}

// CoversHosts reports whether leaf names host and every address in ips.
// Viewers reach the server by LAN address, so a certificate issued before an
// address change fails name validation on every client.
func CoversHosts(leaf *x509.Certificate, host string, ips []net.IP) bool {
	if host != "" && host != "localhost" && !slices.Contains(leaf.DNSNames, host) {
		return false
	}
	for _, ip := range ips {
		if !containsIP(leaf.IPAddresses, ip) {
			return false
		}
	}
	return true
}

// Regenerate discards the stored certificate and key and creates a new pair.
func (p *Provider) Regenerate() (*tls.Certificate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = nil
	for _, path := range []string{p.certPath(), p.keyPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", filepath.Base(path), err)
		}
	}

	cert, err := p.create()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCertificate, err)
	}
	p.cached = cert
	return cert, nil
}

func (p *Provider) certPath() string { return filepath.Join(p.dir, certFile) }
func (p *Provider) keyPath() string  { return filepath.Join(p.dir, keyFile) }

func (p *Provider) load() (*tls.Certificate, error) {
	certPEM, err := os.ReadFile(p.certPath())
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(p.keyPath())
	if err != nil {
		return nil, err
	}
	return LoadKeyPair(certPEM, keyPEM)
}

func (p *Provider) create() (*tls.Certificate, error) {
	host, ips := p.hosts()
	certPEM, keyPEM, err := Generate(host, ips, p.now())
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath(), keyPEM, 0600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	if err := os.WriteFile(p.certPath(), certPEM, 0644); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}

	cert, err := LoadKeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	if err := p.writeDER(cert, filepath.Join(p.dir, PublicFile)); err != nil {
		p.log.Warn("failed to export public certificate", logging.KeyError, err)
	}

	p.log.Info("created self-signed certificate",
		"path", p.certPath(),
		"sans", strings.Join(sanList(cert.Leaf), ","),
		"fingerprint", Fingerprint(cert.Leaf.Raw))
	return cert, nil
}

// Export writes the DER-encoded public certificate to path, creating the
// certificate first if needed. Phones import this file to trust the server.
func (p *Provider) Export(path string) error {
	cert, err := p.GetOrCreateCertificate()
	if err != nil {
		return err
	}
	return p.writeDER(cert, path)
}

func (p *Provider) writeDER(cert *tls.Certificate, path string) error {
	if len(cert.Certificate) == 0 {
		return ErrNoCertificate
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, cert.Certificate[0], 0644)
}

// Generate creates a self-signed ECDSA P-256 server certificate valid from
// now for ten years, with SANs for localhost, the loopback addresses, host
// and ips. It returns PEM-encoded certificate and key.
func Generate(host string, ips []net.IP, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: CommonName, Organization: []string{"Deskcast"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	if host != "" && host != "localhost" {
		tmpl.DNSNames = append(tmpl.DNSNames, host)
	}
	for _, ip := range ips {
		if !containsIP(tmpl.IPAddresses, ip) {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func containsIP(list []net.IP, ip net.IP) bool {
	for _, existing := range list {
		if existing.Equal(ip) {
			return true
		}
	}
	return false
}

// LoadKeyPair parses a PEM-encoded certificate and private key pair and
// populates Leaf.
func LoadKeyPair(certPEM, keyPEM []byte) (*tls.Certificate, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse key pair: %w", err)
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parse leaf: %w", err)
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}

// IsExpired reports whether notAfter has passed.
func IsExpired(notAfter, now time.Time) bool {
	return now.After(notAfter)
}

// NeedsRenewal reports whether now is past two thirds of the validity window.
func NeedsRenewal(notBefore, notAfter, now time.Time) bool {
	if !notAfter.After(notBefore) {
		return true
	}
	lifetime := notAfter.Sub(notBefore)
	threshold := notBefore.Add(lifetime * 2 / 3)
	return now.After(threshold)
}

// Fingerprint returns the colon-separated SHA-256 fingerprint of der.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

func sanList(leaf *x509.Certificate) []string {
	out := append([]string(nil), leaf.DNSNames...)
	for _, ip := range leaf.IPAddresses {
		out = append(out, ip.String())
	}
	return out
}
