package telemetry

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandHeapSampler queries heap usage through an external JMX query
// tool. The tool is invoked as
//
//	<tool> <service-url> <user> <password>
//
// and must print "<used> <max>" in bytes on stdout. Resolve supplies
// the per-world connection details from the credential records.
type CommandHeapSampler struct {
	Tool    string
	Resolve func(worldNumber string) (serviceURL, user, password string, err error)
}

// ServiceURL builds the management connector address for a host/port.
func ServiceURL(host string, jmxPort int) string {
	return fmt.Sprintf("service:jmx:rmi:///jndi/rmi://%s:%d/jmxrmi", host, jmxPort)
}

func (s *CommandHeapSampler) Sample(ctx context.Context, worldNumber string) (HeapUsage, error) {
	if s.Resolve == nil {
		return HeapUsage{}, fmt.Errorf("telemetry: no resolver configured")
	}
	url, user, password, err := s.Resolve(worldNumber)
	if err != nil {
		return HeapUsage{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, SampleTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, s.Tool, url, user, password).Output()
	if err != nil {
		return HeapUsage{}, fmt.Errorf("telemetry: heap query: %w", err)
	}
	var u HeapUsage
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%d %d", &u.UsedBytes, &u.MaxBytes); err != nil {
		return HeapUsage{}, fmt.Errorf("telemetry: heap query output %q: %w", out, err)
	}
	return u, nil
}
