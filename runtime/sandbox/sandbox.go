// Package sandbox wires core/capability's guard to runtime/audit: every
// denied capability check emits exactly one SECURITY_VIOLATION event,
// satisfying spec.md §8 invariant 7 ("capability enforcement").
package sandbox

import (
	"strconv"

	"github.com/naab-lang/naab/core/capability"
	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/invariant"
	"github.com/naab-lang/naab/core/value"
	"github.com/naab-lang/naab/runtime/audit"
)

// Guard pairs a capability set with the audit logger every side-effecting
// interpreter operation must go through. It is the single object threaded
// into the interpreter for sandboxing, per spec.md §9's "explicit context
// objects, not ambient globals."
type Guard struct {
	caps   *capability.Guard
	logger *audit.Logger
}

// New wires caps to logger. Both must be non-nil.
func New(caps *capability.Guard, logger *audit.Logger) *Guard {
	invariant.NotNil(caps, "caps")
	invariant.NotNil(logger, "logger")
	return &Guard{caps: caps, logger: logger}
}

// Capabilities returns the underlying capability set, for components (like
// core/session.LocalSession) that need to call Require directly without
// going through Guard's Runtime/denied wrapping.
func (g *Guard) Capabilities() *capability.Guard { return g.caps }

// Check requires c for operation against subject. On denial it logs exactly
// one SECURITY_VIOLATION event and returns a Runtime/denied *errors.Error;
// on success it returns nil.
func (g *Guard) Check(c capability.Capability, operation, subject string) error {
	if err := g.caps.Require(c, operation, subject); err != nil {
		_ = g.logger.Log(audit.EventSecurityViolation, err.Error(), map[string]string{
			"capability": string(c),
			"operation":  operation,
			"subject":    subject,
		})
		return errors.New(errors.Runtime, errors.Location{}, "denied: %s requires %s", operation, c).WithCode("E1DEN")
	}
	return nil
}

// CheckBlockLoad is a convenience wrapper for the block-loader call site.
func (g *Guard) CheckBlockLoad(blockID string) error {
	return g.Check(capability.BlockLoad, "block.load", blockID)
}

// CheckBlockCall is a convenience wrapper for the executor dispatch call
// site.
func (g *Guard) CheckBlockCall(blockID string) error {
	return g.Check(capability.BlockCall, "block.call", blockID)
}

// LogBlockExecute records a successful block execution, independent of
// capability checks — every block call is auditable even when fully
// permitted.
func (g *Guard) LogBlockExecute(blockID, language string, args []value.Value) error {
	return g.logger.Log(audit.EventBlockExecute, "block executed", map[string]string{
		"block_id": blockID,
		"language": language,
		"argc":     strconv.Itoa(len(args)),
	})
}

// LogHashMismatch records a block load whose source hash didn't match the
// hash recorded against its block identifier, per spec.md §6's BlockLoader
// contract.
func (g *Guard) LogHashMismatch(blockID, expected, actual string) error {
	return g.logger.Log(audit.EventHashMismatch, "block source hash mismatch", map[string]string{
		"block_id": blockID,
		"expected": expected,
		"actual":   actual,
	})
}
