// Package netguard owns the host-network preconditions for running game
// servers: port probes, firewall rules, management credential files and
// reclaiming ports from stale processes.
package netguard

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Rule names mirror the firewall entries the orchestrator manages. The
// names are attached as rule comments so repeated setup runs can detect
// their own entries.
func ruleName(proto string, port int) string {
	return fmt.Sprintf("MinecraftServer_%s_%d", proto, port)
}

// IsPortInUse probes a TCP port by attempting to bind it. A failed bind
// means something is already listening.
func IsPortInUse(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return true
	}
	_ = ln.Close()
	return false
}

// WaitPortsFree blocks until none of the ports is in use, polling once a
// second. The context bounds the wait; without a deadline it waits
// indefinitely, matching the historical startup behavior.
func WaitPortsFree(ctx context.Context, ports ...int) error {
	for {
		busy := false
		for _, p := range ports {
			if IsPortInUse(p) {
				busy = true
				break
			}
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("netguard: ports still in use: %w", ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

// Guard checks and repairs host network configuration.
type Guard struct {
	Runner Runner
	// JMXDir holds the remote-management credential files.
	JMXDir string
}

func (g *Guard) runner() Runner {
	if g.Runner == nil {
		return ExecRunner{}
	}
	return g.Runner
}

// AccessFile and PasswordFile are the management credential paths.
func (g *Guard) AccessFile() string   { return filepath.Join(g.JMXDir, "jmxremote.access") }
func (g *Guard) PasswordFile() string { return filepath.Join(g.JMXDir, "jmxremote.password") }

// hasRule reports whether the named firewall rule already exists.
func (g *Guard) hasRule(proto string, port int) bool {
	_, err := g.runner().Run("iptables",
		"-C", "INPUT", "-p", strings.ToLower(proto), "--dport", strconv.Itoa(port),
		"-m", "comment", "--comment", ruleName(proto, port), "-j", "ACCEPT")
	return err == nil
}

func (g *Guard) addRule(proto string, port int) error {
	_, err := g.runner().Run("iptables",
		"-A", "INPUT", "-p", strings.ToLower(proto), "--dport", strconv.Itoa(port),
		"-m", "comment", "--comment", ruleName(proto, port), "-j", "ACCEPT")
	return err
}

// CheckNetworkConfigured reports whether every given port has a firewall
// rule and the management credential files exist. A port counts as
// configured when either its TCP or its UDP rule is present.
func (g *Guard) CheckNetworkConfigured(ports ...int) bool {
	for _, p := range ports {
		if !g.hasRule("TCP", p) && !g.hasRule("UDP", p) {
			return false
		}
	}
	if _, err := os.Stat(g.AccessFile()); err != nil {
		return false
	}
	if _, err := os.Stat(g.PasswordFile()); err != nil {
		return false
	}
	return true
}

// OpenFirewallPort ensures TCP and UDP rules exist for the port. Firewall
// failures are logged, never returned; a host without privileges still
// runs servers reachable locally.
func (g *Guard) OpenFirewallPort(port int) {
	for _, proto := range []string{"TCP", "UDP"} {
		if g.hasRule(proto, port) {
			continue
		}
		if err := g.addRule(proto, port); err != nil {
			slog.Warn("firewall rule not added", "rule", ruleName(proto, port), "error", err)
		}
	}
}

// WriteCredentials writes the management access and password files for
// the session user. The password file must be unreadable to others or
// the JVM refuses it.
func (g *Guard) WriteCredentials(user, password string) error {
	if err := os.MkdirAll(g.JMXDir, 0o700); err != nil {
		return fmt.Errorf("netguard: jmx dir: %w", err)
	}
	if err := os.WriteFile(g.AccessFile(), []byte(user+" readwrite\n"), 0o600); err != nil {
		return fmt.Errorf("netguard: access file: %w", err)
	}
	if err := os.WriteFile(g.PasswordFile(), []byte(user+" "+password+"\n"), 0o600); err != nil {
		return fmt.Errorf("netguard: password file: %w", err)
	}
	return nil
}

// Setup prepares the host for a world: credential files plus firewall
// rules for every port.
func (g *Guard) Setup(user, password string, ports ...int) error {
	if err := g.WriteCredentials(user, password); err != nil {
		return err
	}
	for _, p := range ports {
		g.OpenFirewallPort(p)
	}
	return nil
}

// ClosePort terminates whatever is listening on the port. Nothing
// listening is success. Signals go to the whole process group when
// possible so JVM children die with their wrapper.
func (g *Guard) ClosePort(port int) error {
	out, err := g.runner().Run("ss", "-ltnp")
	if err != nil {
		return fmt.Errorf("netguard: list sockets: %w", err)
	}
	pids := PIDsListeningOn(out, port)
	for _, pid := range pids {
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			if err2 := syscall.Kill(pid, syscall.SIGKILL); err2 != nil {
				return fmt.Errorf("netguard: kill pid %d on port %d: %w", pid, port, err2)
			}
		}
		slog.Info("reclaimed port", "port", port, "pid", pid)
	}
	return nil
}

// PIDsListeningOn extracts the owning PIDs for listeners on port from
// `ss -ltnp` output.
func PIDsListeningOn(out string, port int) []int {
	suffix := ":" + strconv.Itoa(port)
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		local := fields[3]
		if !strings.HasSuffix(local, suffix) {
			continue
		}
		for _, pid := range extractPIDs(line) {
			pids = append(pids, pid)
		}
	}
	return pids
}

// extractPIDs pulls every pid=N token out of an ss process column.
func extractPIDs(line string) []int {
	var out []int
	rest := line
	for {
		i := strings.Index(rest, "pid=")
		if i < 0 {
			return out
		}
		rest = rest[i+len("pid="):]
		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if j > 0 {
			if n, err := strconv.Atoi(rest[:j]); err == nil {
				out = append(out, n)
			}
		}
		rest = rest[j:]
	}
}
