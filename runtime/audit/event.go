// Package audit implements NAAb's append-only audit log: plain JSON-line
// logging, an optional tamper-evident hash chain with HMAC signing, file
// rotation, and an offline verifier.
package audit

// Event names an auditable occurrence. The interpreter and every C9
// subsystem (executor, sandbox guard, block loader) funnel their
// significant events through one of these.
type Event string

const (
	EventBlockLoad         Event = "BLOCK_LOAD"
	EventBlockExecute      Event = "BLOCK_EXECUTE"
	EventBlockComplete     Event = "BLOCK_COMPLETE"
	EventSecurityViolation Event = "SECURITY_VIOLATION"
	EventTimeout           Event = "TIMEOUT"
	EventHashMismatch      Event = "HASH_MISMATCH"
	EventForeignException  Event = "FOREIGN_EXCEPTION"
	EventScheduleWave      Event = "SCHEDULE_WAVE"
	EventLiveTamperAlert   Event = "LIVE_TAMPER_ALERT"
)
