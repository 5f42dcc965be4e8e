package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

// BackupName returns the name of the index-th backup of path; index 0 is
// path itself.
func BackupName(path string, index int) string {
	if index == 0 {
		return path
	}
	return fmt.Sprintf("%s.%d", path, index)
}

// ShiftBackups moves path to path.1, path.1 to path.2 and so on, dropping
// the file that would land beyond keep. Missing files are skipped; other
// failures are collected and the shift continues.
func ShiftBackups(path string, keep int) error {
	if keep < 1 {
		keep = 1
	}
	var errs []error
	if err := os.Remove(BackupName(path, keep)); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	for i := keep; i >= 1; i-- {
		if err := os.Rename(BackupName(path, i-1), BackupName(path, i)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RotatingWriter appends to a file and rotates it by size. Safe for
// concurrent use.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int
	file    *os.File
	size    int64
}

// NewRotatingWriter opens path for appending, creating its directory.
// Non-positive limits fall back to 10 MB and 3 backups.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:    path,
		limit:   int64(maxSizeMB) << 20,
		backups: maxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		w.file.Close()
		if err := ShiftBackups(w.path, w.backups); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation: %v\n", err)
		}
		if err := w.open(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the current file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file, w.size = f, info.Size()
	return nil
}

// OpenOutput returns the writer Init should log to. With an empty path it is
// stdout alone; otherwise stdout is tee'd with a RotatingWriter, which is
// also returned so the caller can close it on shutdown.
func OpenOutput(path string, maxSizeMB, maxBackups int) (io.Writer, *RotatingWriter, error) {
	if path == "" {
		return os.Stdout, nil, nil
	}
	rw, err := NewRotatingWriter(path, maxSizeMB, maxBackups)
	if err != nil {
		return os.Stdout, nil, err
	}
	return io.MultiWriter(os.Stdout, rw), rw, nil
}
