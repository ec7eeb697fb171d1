// Package output implements the polyglot output parser (spec.md §4.C10):
// it recovers a foreign block's return value and separates log output from
// the raw stdout text an executor captured.
package output

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/naab-lang/naab/core/value"
)

// Sentinel is the fixed framing token Parse looks for immediately before
// a block's JSON-encoded return payload, chosen to be exceedingly unlikely
// to appear in ordinary program output. No executor in this module emits
// it: the subprocess executors pass raw stdout to Parse, which then falls
// back to its trailing-JSON and last-line heuristics.
const Sentinel = "\x00NAAB_RESULT_SENTINEL\x00"

// Parsed is the parser's output: the recovered return value and whatever
// preceded the payload (or, when nothing could be recovered, all of
// stdout).
type Parsed struct {
	ReturnValue value.Value
	LogOutput   string
}

// Parse applies spec.md §4.C10's algorithm to stdout, using typeHint (a
// declared return type name, or "" for none) only as a last-resort literal
// coercion when JSON parsing of the payload fails.
func Parse(stdout string, typeHint string) Parsed {
	logPart, payload, found := splitOnSentinel(stdout)
	if !found {
		logPart, payload = extractTrailingJSON(stdout)
	}

	if payload == "" {
		return Parsed{ReturnValue: value.Null, LogOutput: stdout}
	}

	v, ok := parseJSONValue(payload)
	if ok {
		return Parsed{ReturnValue: v, LogOutput: logPart}
	}

	if v, ok := coerceLiteral(strings.TrimSpace(payload), typeHint); ok {
		return Parsed{ReturnValue: v, LogOutput: logPart}
	}

	return Parsed{ReturnValue: value.Null, LogOutput: stdout}
}

func splitOnSentinel(stdout string) (logPart, payload string, found bool) {
	idx := strings.Index(stdout, Sentinel)
	if idx < 0 {
		return "", "", false
	}
	return stdout[:idx], strings.TrimSpace(stdout[idx+len(Sentinel):]), true
}

// extractTrailingJSON locates the last balanced `{...}` or `[...]` prefix
// in stdout, or the last standalone literal line, per spec.md §4.C10 step 2.
func extractTrailingJSON(stdout string) (logPart, payload string) {
	trimmed := strings.TrimRight(stdout, "\n\r\t ")
	if trimmed == "" {
		return stdout, ""
	}

	for i := len(trimmed) - 1; i >= 0; i-- {
		c := trimmed[i]
		if c != '}' && c != ']' {
			continue
		}
		open := byte('{')
		if c == ']' {
			open = '['
		}
		start := matchingOpenIndex(trimmed, i, open, c)
		if start >= 0 {
			return trimmed[:start], trimmed[start : i+1]
		}
	}

	lines := strings.Split(trimmed, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return stdout, ""
	}
	logPart = strings.Join(lines[:len(lines)-1], "\n")
	return logPart, last
}

// matchingOpenIndex scans backward from close (inclusive) for the index of
// the open bracket that balances it, respecting JSON string quoting so
// brackets inside string literals don't confuse the depth count.
func matchingOpenIndex(s string, close int, open, closeByte byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := close; i >= 0; i-- {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				// A quote not itself escaped (scanning backward, the
				// preceding char determines escaping, already handled).
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case closeByte:
			depth++
		case open:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseJSONValue(payload string) (value.Value, bool) {
	var raw any
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	return fromJSONAny(raw), true
}

func fromJSONAny(raw any) value.Value {
	switch v := raw.(type) {
	case nil:
		return value.Null
	case bool:
		return value.Bool(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return value.Int(i)
		}
		f, _ := v.Float64()
		return value.Float(f)
	case string:
		return value.Str(v)
	case []any:
		items := make([]value.Value, len(v))
		for i, e := range v {
			items[i] = fromJSONAny(e)
		}
		return value.NewList(items...)
	case map[string]any:
		d := value.NewDict()
		for k, e := range v {
			d.Set(k, fromJSONAny(e))
		}
		return d
	default:
		return value.Null
	}
}

// coerceLiteral accepts a non-JSON payload as a plain literal when it fits
// typeHint, per spec.md §4.C10 step 3.
func coerceLiteral(payload, typeHint string) (value.Value, bool) {
	switch strings.ToLower(typeHint) {
	case "int":
		if i, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return value.Int(i), true
		}
	case "float":
		if f, err := strconv.ParseFloat(payload, 64); err == nil {
			return value.Float(f), true
		}
	case "bool":
		if b, err := strconv.ParseBool(payload); err == nil {
			return value.Bool(b), true
		}
	case "string":
		return value.Str(payload), true
	}
	return nil, false
}
