package audit

import (
	"bufio"
	"fmt"
	"os"
)

// rotateIfNeededLocked renames the active file to file.1 (shifting any
// existing file.N to file.(N+1), dropping generations beyond Retain) and
// opens a fresh file, once the active file reaches rotation.MaxBytes.
// Caller must hold l.mu.
func (l *Logger) rotateIfNeededLocked() error {
	if l.rotation.MaxBytes <= 0 {
		return nil
	}

	info, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("audit: stat for rotation: %w", err)
	}
	if info.Size() < l.rotation.MaxBytes {
		return nil
	}

	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("audit: flush before rotation: %w", err)
	}
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("audit: close before rotation: %w", err)
	}

	retain := l.rotation.Retain
	if retain <= 0 {
		retain = 1
	}

	// Shift file.(N-1) -> file.N from the oldest retained generation down,
	// so no generation is clobbered before it's moved.
	oldest := fmt.Sprintf("%s.%d", l.path, retain)
	_ = os.Remove(oldest)
	for n := retain - 1; n >= 1; n-- {
		from := fmt.Sprintf("%s.%d", l.path, n)
		to := fmt.Sprintf("%s.%d", l.path, n+1)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return fmt.Errorf("audit: rotating %s -> %s: %w", from, to, err)
			}
		}
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return fmt.Errorf("audit: rotating active log: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: opening new log after rotation: %w", err)
	}
	l.f = f
	l.w = bufio.NewWriter(f)
	l.written = 0
	return nil
}
