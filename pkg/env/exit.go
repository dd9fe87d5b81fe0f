// Package env holds the process exit codes errmark uses.
package env

const (
	// ExitOK is the return code for a normal exit; the child's own
	// status is what actually propagates in that case (see main.go).
	ExitOK = 0

	// ExitUsage is the return code for a user-input error (bad flag,
	// bad mark spec, unknown color, missing program name) and for a
	// fatal fork/exec or ptrace failure.
	ExitUsage = 2
)
