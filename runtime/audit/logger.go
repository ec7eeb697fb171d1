package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/naab-lang/naab/core/invariant"
)

// Logger is a mutex-serialised, append-only JSON-line writer. With
// tamper-evidence enabled (the default), every entry is chained by SHA-256
// hash to the previous one; with HMAC additionally enabled, every entry also
// carries an HMAC-SHA256 signature over its canonical bytes.
type Logger struct {
	mu sync.Mutex

	path     string
	f        *os.File
	w        *bufio.Writer
	rotation RotationPolicy

	tamperEvident bool
	sequence      uint64
	lastHash      string

	hmacEnabled bool
	hmacKey     []byte

	written int64 // bytes written since last rotation check
}

// RotationPolicy configures size-based log rotation: when the active file
// reaches MaxBytes, it is renamed file -> file.1, existing file.N shift to
// file.(N+1) up to Retain generations, and a fresh file is opened.
type RotationPolicy struct {
	MaxBytes int64
	Retain   int
}

// Option configures a Logger at construction time.
type Option func(*Logger)

// WithTamperEvidence enables or disables the hash chain (enabled by
// default).
func WithTamperEvidence(enabled bool) Option {
	return func(l *Logger) { l.tamperEvident = enabled }
}

// WithHMAC enables HMAC-SHA256 signing with key.
func WithHMAC(key []byte) Option {
	return func(l *Logger) {
		l.hmacEnabled = true
		l.hmacKey = append([]byte(nil), key...)
	}
}

// WithRotation sets the size-based rotation policy. A zero MaxBytes means
// rotation is disabled.
func WithRotation(policy RotationPolicy) Option {
	return func(l *Logger) { l.rotation = policy }
}

// Open creates or appends to the log file at path, replaying it to recover
// sequence/lastHash so a process restart continues the same chain.
func Open(path string, opts ...Option) (*Logger, error) {
	invariant.Precondition(path != "", "path cannot be empty")

	l := &Logger{path: path, tamperEvident: true}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.recoverChain(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: opening log file: %w", err)
	}
	l.f = f
	l.w = bufio.NewWriter(f)

	if l.tamperEvident && l.sequence == 0 && l.lastHash == "" {
		if err := l.writeGenesis(); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// recoverChain scans an existing log file (if any) for the last sequence
// number and hash, so appends after a restart continue the chain correctly.
func (l *Logger) recoverChain() error {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("audit: reading existing log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.Sequence != nil {
			l.sequence = *e.Sequence + 1
		}
		l.lastHash = e.Hash
	}
	return sc.Err()
}

func (l *Logger) writeGenesis() error {
	e := Entry{
		Details:   "genesis",
		Event:     "GENESIS",
		Metadata:  map[string]string{},
		Timestamp: nowISO8601(),
	}
	return l.appendLocked(e)
}

// Log appends one event. details and metadata are copied into the entry as
// given; metadata may be nil.
func (l *Logger) Log(event Event, details string, metadata map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if metadata == nil {
		metadata = map[string]string{}
	}
	e := Entry{
		Details:   details,
		Event:     event,
		Metadata:  metadata,
		Timestamp: nowISO8601(),
	}
	return l.appendLocked(e)
}

// appendLocked finalises e's chain fields (if tamper evidence is on),
// writes the canonical JSON line, and rotates if needed. Caller must hold
// l.mu.
func (l *Logger) appendLocked(e Entry) error {
	if l.tamperEvident {
		seq := l.sequence
		e.Sequence = &seq
		if seq == 0 {
			e.PrevHash = genesisPrevHash
		} else {
			e.PrevHash = l.lastHash
		}
		e.Hash = hex.EncodeToString(sha256Sum(e.canonicalBytes()))
		if l.hmacEnabled {
			e.Signature = hex.EncodeToString(hmacSum(e.canonicalBytes(), l.hmacKey))
		}
		l.sequence = seq + 1
		l.lastHash = e.Hash
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: marshalling entry: %w", err)
	}
	line = append(line, '\n')

	if l.w != nil {
		if _, err := l.w.Write(line); err != nil {
			return fmt.Errorf("audit: writing entry: %w", err)
		}
		if err := l.w.Flush(); err != nil {
			return fmt.Errorf("audit: flushing entry: %w", err)
		}
		l.written += int64(len(line))
		if err := l.rotateIfNeededLocked(); err != nil {
			return err
		}
	}
	return nil
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func hmacSum(b, key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(b)
	return mac.Sum(nil)
}

// Sequence returns the next sequence number that will be assigned.
func (l *Logger) Sequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil {
		if err := l.w.Flush(); err != nil {
			return err
		}
	}
	if l.f != nil {
		return l.f.Close()
	}
	return nil
}
