package secret

import "sync"

// Registry tracks every live Handle created through New, so an output
// scrubber can redact all of them from stdout/stderr without any caller
// needing the BlockCall capability Unwrap requires. This is the one path
// that reads raw secret bytes without a capability check — it exists only
// to feed a redaction pass, never to hand the value to a caller.
type Registry struct {
	mu      sync.Mutex
	handles []*Handle
}

// DefaultRegistry is the process-wide registry New populates automatically.
var DefaultRegistry = &Registry{}

func (r *Registry) register(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, h)
}

// RedactionPattern pairs a secret's raw bytes with its display placeholder.
type RedactionPattern struct {
	Value       []byte
	Placeholder string
}

// Patterns snapshots every live, non-wiped handle's raw value and display
// placeholder. A Handle wiped after registration is skipped: its buffer has
// already been zeroed, so it has nothing left worth matching against.
func (r *Registry) Patterns() []RedactionPattern {
	r.mu.Lock()
	defer r.mu.Unlock()
	patterns := make([]RedactionPattern, 0, len(r.handles))
	for _, h := range r.handles {
		v := h.raw.Bytes()
		if len(v) == 0 {
			continue
		}
		patterns = append(patterns, RedactionPattern{
			Value:       append([]byte(nil), v...),
			Placeholder: h.displayID,
		})
	}
	return patterns
}
