package audit

import (
	"encoding/json"
	"strings"
	"time"
)

// genesisPrevHash is 64 zero hex digits, the prev_hash of sequence 0.
var genesisPrevHash = strings.Repeat("0", 64)

// Entry is one audit-log line. The canonical fields are declared in
// alphabetical JSON-key order (details, event, metadata, prev_hash,
// sequence, timestamp), with hash and signature declared last —
// encoding/json preserves struct field order for object keys and sorts
// map[string]string keys on its own, so a plain json.Marshal of Entry
// produces the canonical byte sequence once the omitempty Hash and
// Signature are cleared.
type Entry struct {
	Details   string            `json:"details"`
	Event     Event             `json:"event"`
	Metadata  map[string]string `json:"metadata"`
	PrevHash  string            `json:"prev_hash,omitempty"`
	Sequence  *uint64           `json:"sequence,omitempty"`
	Timestamp string            `json:"timestamp"`
	Hash      string            `json:"hash,omitempty"`
	Signature string            `json:"signature,omitempty"`
}

func nowISO8601() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// canonicalBytes returns the entry serialised with Hash and Signature
// cleared, per spec.md §9: "the canonical serialisation sorts metadata
// keys and omits the hash and signature fields."
func (e Entry) canonicalBytes() []byte {
	e.Hash = ""
	e.Signature = ""
	b, err := json.Marshal(e)
	if err != nil {
		panic("audit: entry is not JSON-serialisable: " + err.Error())
	}
	return b
}
