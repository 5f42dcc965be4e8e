//go:build !windows && !linux

package audio

import "log/slog"

type unsupportedSource struct{}

func newPlatformSource(*slog.Logger) Source { return unsupportedSource{} }

func (unsupportedSource) Open() (Format, error) { return Format{}, ErrNotSupported }
func (unsupportedSource) Read() ([]byte, error) { return nil, ErrNotSupported }
func (unsupportedSource) Close()                {}
