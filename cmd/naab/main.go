// Command naab is the NAAb driver: it locks down stdout/stderr through the
// scrubber before any evaluation happens, then dispatches to cobra
// subcommands. Parsing NAAb source into a Program is out of scope for this
// core (see SPEC_FULL.md §1) — this binary wires no parser or BlockLoader
// and exposes only the one self-contained operation the core can run
// standalone: offline audit log verification.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naab-lang/naab/core/secret"
	"github.com/naab-lang/naab/runtime/audit"
	"github.com/naab-lang/naab/runtime/streamscrub"
)

// exitCodeError carries a specific process exit code through cobra's
// error-returning RunE, so main can defer the scrubber restore before
// exiting rather than calling os.Exit from inside a command handler.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func main() {
	os.Exit(run())
}

func run() int {
	var outputBuf bytes.Buffer
	secretProvider := streamscrub.NewPatternProvider(func() []streamscrub.Pattern {
		pairs := secret.DefaultRegistry.Patterns()
		patterns := make([]streamscrub.Pattern, len(pairs))
		for i, p := range pairs {
			patterns[i] = streamscrub.Pattern{Value: p.Value, Placeholder: []byte(p.Placeholder)}
		}
		return patterns
	})
	scrubber := streamscrub.New(&outputBuf, streamscrub.WithSecretProvider(secretProvider))
	restore := scrubber.LockdownStreams()

	rootCmd := &cobra.Command{
		Use:           "naab",
		Short:         "NAAb polyglot scripting engine",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(newAuditCmd())

	execErr := rootCmd.Execute()

	restore()
	_, _ = os.Stdout.Write(outputBuf.Bytes())

	if execErr != nil {
		var exitErr *exitCodeError
		if errors.As(execErr, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintln(os.Stderr, "error:", execErr)
		return 1
	}
	return 0
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and verify the tamper-evident audit log",
	}
	cmd.AddCommand(newAuditVerifyCmd())
	return cmd
}

// newAuditVerifyCmd implements `naab audit verify <file>`, mirroring
// original_source/src/cli/verify_audit.cpp: it runs the offline chain
// verifier and prints a human-readable report, exiting non-zero when the
// chain is tampered or cannot be read.
func newAuditVerifyCmd() *cobra.Command {
	var hmacKeyHex string
	var noColor bool

	cmd := &cobra.Command{
		Use:   "verify <log-file>",
		Short: "Verify a tamper-evident audit log's hash chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile := args[0]

			info, err := os.Stat(logFile)
			if err != nil {
				return fmt.Errorf("audit log not found: %w", err)
			}

			var hmacKey []byte
			if hmacKeyHex != "" {
				hmacKey = []byte(hmacKeyHex)
			}

			fmt.Printf("Log File:  %s\n", logFile)
			fmt.Printf("File Size: %.2f KB\n", float64(info.Size())/1024.0)
			if hmacKey != nil {
				fmt.Println("HMAC Verification: enabled")
			}
			fmt.Println()

			result, err := audit.Verify(logFile, hmacKey)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			useColor := shouldUseColor(noColor)
			printVerificationResult(cmd.OutOrStdout(), result, useColor)

			if !result.Valid {
				return &exitCodeError{code: 2}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&hmacKeyHex, "hmac-key", "", "Verify HMAC signatures with the provided key")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func printVerificationResult(w interface{ Write([]byte) (int, error) }, result audit.VerificationResult, useColor bool) {
	status := "VALID"
	statusColor := colorGreen
	if !result.Valid {
		status = "TAMPERED"
		statusColor = colorRed
	}

	fmt.Fprintf(w, "Total Entries:    %d\n", result.TotalEntries)
	fmt.Fprintf(w, "Verified Entries: %d\n", result.VerifiedEntries)
	fmt.Fprintf(w, "Status:           %s\n\n", colorize(status, statusColor, useColor))

	if len(result.TamperedSequences) > 0 {
		fmt.Fprintf(w, "Tampered entries (%d):\n", len(result.TamperedSequences))
		for _, seq := range result.TamperedSequences {
			fmt.Fprintf(w, "  %s sequence %d\n", colorize("x", colorRed, useColor), seq)
		}
	}
	if len(result.MissingSequences) > 0 {
		fmt.Fprintf(w, "Missing entries (%d):\n", len(result.MissingSequences))
		for _, seq := range result.MissingSequences {
			fmt.Fprintf(w, "  %s sequence %d\n", colorize("!", colorYellow, useColor), seq)
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func shouldUseColor(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, _ := os.Stdout.Stat()
	return (fi.Mode() & os.ModeCharDevice) != 0
}
