package netguard

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

// fakeRunner answers commands from a table keyed on the joined argv.
type fakeRunner struct {
	out  map[string]string
	errs map[string]error
	log  []string
}

func (f *fakeRunner) Run(name string, args ...string) (string, error) {
	key := name + " " + strings.Join(args, " ")
	f.log = append(f.log, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.out[key], nil
}

func TestIsPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if !IsPortInUse(port) {
		t.Fatalf("port %d should read as in use", port)
	}
	_ = ln.Close()
	if IsPortInUse(port) {
		t.Fatalf("port %d should be free after close", port)
	}
}

func TestWaitPortsFreeReturnsWhenFreed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	go func() {
		time.Sleep(1200 * time.Millisecond)
		_ = ln.Close()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := WaitPortsFree(ctx, port); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitPortsFreeHonorsDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := WaitPortsFree(ctx, port); err == nil {
		t.Fatalf("expected deadline error while port held")
	}
}

func TestCheckNetworkConfiguredORsProtocols(t *testing.T) {
	dir := t.TempDir()
	g := &Guard{JMXDir: dir}
	if err := g.WriteCredentials("admin", "12345"); err != nil {
		t.Fatal(err)
	}
	fr := &fakeRunner{errs: map[string]error{}}
	// TCP rule missing, UDP rule present for 25565
	fr.errs["iptables -C INPUT -p tcp --dport 25565 -m comment --comment MinecraftServer_TCP_25565 -j ACCEPT"] = fmt.Errorf("no rule")
	g.Runner = fr
	if !g.CheckNetworkConfigured(25565) {
		t.Fatalf("UDP-only rule should satisfy the check")
	}
	// both missing
	fr.errs["iptables -C INPUT -p udp --dport 25565 -m comment --comment MinecraftServer_UDP_25565 -j ACCEPT"] = fmt.Errorf("no rule")
	if g.CheckNetworkConfigured(25565) {
		t.Fatalf("missing both rules should fail the check")
	}
}

func TestCheckNetworkConfiguredNeedsCredentialFiles(t *testing.T) {
	g := &Guard{JMXDir: t.TempDir(), Runner: &fakeRunner{}}
	if g.CheckNetworkConfigured(25565) {
		t.Fatalf("missing credential files should fail the check")
	}
}

func TestOpenFirewallPortIdempotent(t *testing.T) {
	fr := &fakeRunner{errs: map[string]error{}}
	g := &Guard{JMXDir: t.TempDir(), Runner: fr}
	g.OpenFirewallPort(25565)
	for _, call := range fr.log {
		if strings.Contains(call, "-A INPUT") {
			t.Fatalf("existing rules should not be re-added: %s", call)
		}
	}
	fr.errs["iptables -C INPUT -p tcp --dport 25566 -m comment --comment MinecraftServer_TCP_25566 -j ACCEPT"] = fmt.Errorf("no rule")
	g.OpenFirewallPort(25566)
	added := false
	for _, call := range fr.log {
		if strings.Contains(call, "-A INPUT -p tcp --dport 25566") {
			added = true
		}
	}
	if !added {
		t.Fatalf("missing TCP rule was not added: %v", fr.log)
	}
}

func TestWriteCredentialsPermissions(t *testing.T) {
	g := &Guard{JMXDir: t.TempDir()}
	if err := g.WriteCredentials("admin", "54321"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(g.PasswordFile())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("password file mode = %v, want 0600", info.Mode().Perm())
	}
	b, _ := os.ReadFile(g.AccessFile())
	if string(b) != "admin readwrite\n" {
		t.Fatalf("access file: %q", b)
	}
}

func TestPIDsListeningOn(t *testing.T) {
	out := `State  Recv-Q Send-Q Local Address:Port  Peer Address:Port Process
LISTEN 0      128    0.0.0.0:25565       0.0.0.0:*         users:(("java",pid=4242,fd=5))
LISTEN 0      128    [::]:25565          [::]:*            users:(("java",pid=4242,fd=6))
LISTEN 0      128    127.0.0.1:25575     0.0.0.0:*         users:(("java",pid=999,fd=7))`
	pids := PIDsListeningOn(out, 25565)
	if len(pids) != 2 || pids[0] != 4242 || pids[1] != 4242 {
		t.Fatalf("pids = %v", pids)
	}
	if got := PIDsListeningOn(out, 25575); len(got) != 1 || got[0] != 999 {
		t.Fatalf("pids 25575 = %v", got)
	}
	if got := PIDsListeningOn(out, 8080); len(got) != 0 {
		t.Fatalf("pids 8080 = %v", got)
	}
}

func TestClosePortNoListenerIsSuccess(t *testing.T) {
	fr := &fakeRunner{out: map[string]string{"ss -ltnp": "State Recv-Q"}}
	g := &Guard{Runner: fr}
	if err := g.ClosePort(25565); err != nil {
		t.Fatalf("no listener should be success: %v", err)
	}
}
