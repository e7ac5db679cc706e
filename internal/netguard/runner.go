package netguard

import (
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its combined output.
// The firewall and connection-table paths go through this seam so tests
// can substitute canned output.
type Runner interface {
	Run(name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
