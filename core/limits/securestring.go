package limits

import "runtime"

// SecureString is a zero-on-drop byte container for values that must not
// linger in memory after use (HMAC keys, values read for a secret-bearing
// Foreign, etc). Go has no destructor, so callers must call Wipe
// explicitly at the end of the value's useful life; Wipe is idempotent.
//
// The overwrite loop is byte-at-a-time and closes over runtime.KeepAlive so
// the compiler cannot prove the writes are dead and elide them — the
// closest portable approximation to a non-elidable barrier available
// without a platform intrinsic (spec §4.C4: "overwritten using a barrier
// the compiler is forbidden to elide [...] otherwise a volatile byte-wise
// loop").
type SecureString struct {
	buf []byte
}

// NewSecureString copies src into a SecureString. The caller remains
// responsible for wiping src itself if it originated from a source the
// caller controls.
func NewSecureString(src []byte) *SecureString {
	buf := make([]byte, len(src))
	copy(buf, src)
	return &SecureString{buf: buf}
}

// Bytes exposes the underlying buffer. Callers must not retain the slice
// past a subsequent Wipe.
func (s *SecureString) Bytes() []byte {
	return s.buf
}

func (s *SecureString) Len() int { return len(s.buf) }

// Wipe overwrites every byte with zero. Safe to call repeatedly.
func (s *SecureString) Wipe() {
	for i := range s.buf {
		s.buf[i] = 0
	}
	runtime.KeepAlive(s.buf)
}
