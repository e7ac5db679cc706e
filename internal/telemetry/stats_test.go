package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestUptime(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "serverStartupTime.txt")
	start := time.Now().Add(-90 * time.Second)
	if err := os.WriteFile(marker, []byte(start.Format(time.RFC3339)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	up, err := Uptime(marker)
	if err != nil {
		t.Fatalf("uptime: %v", err)
	}
	if up < 89*time.Second || up > 2*time.Minute {
		t.Fatalf("uptime = %v", up)
	}
	if _, err := Uptime(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("missing marker should error")
	}
}

func TestConsoleLogPath(t *testing.T) {
	dir := t.TempDir()
	if _, ok := ConsoleLogPath(dir); ok {
		t.Fatalf("empty dir should find nothing")
	}

	anyLog := filepath.Join(dir, "debug.log")
	if err := os.WriteFile(anyLog, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p, ok := ConsoleLogPath(dir)
	if !ok || p != anyLog {
		t.Fatalf("fallback log: %q ok=%v", p, ok)
	}

	legacy := filepath.Join(dir, "server.log")
	if err := os.WriteFile(legacy, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p, _ = ConsoleLogPath(dir)
	if p != legacy {
		t.Fatalf("server.log should win over fallback: %q", p)
	}

	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		t.Fatal(err)
	}
	latest := filepath.Join(dir, "logs", "latest.log")
	if err := os.WriteFile(latest, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p, _ = ConsoleLogPath(dir)
	if p != latest {
		t.Fatalf("logs/latest.log should win: %q", p)
	}
}

func TestServiceURL(t *testing.T) {
	got := ServiceURL("10.0.0.5", 25585)
	want := "service:jmx:rmi:///jndi/rmi://10.0.0.5:25585/jmxrmi"
	if got != want {
		t.Fatalf("url = %q", got)
	}
}

func TestCommandHeapSamplerSample(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires unix shell")
	}
	tool := filepath.Join(t.TempDir(), "heap-tool.sh")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\necho '1048576 2097152'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	s := &CommandHeapSampler{
		Tool: tool,
		Resolve: func(worldNumber string) (string, string, string, error) {
			return ServiceURL("127.0.0.1", 25585), "admin", "12345", nil
		},
	}
	u, err := s.Sample(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if u.UsedBytes != 1048576 || u.MaxBytes != 2097152 {
		t.Fatalf("usage = %+v", u)
	}
}

func TestCommandHeapSamplerNoResolver(t *testing.T) {
	s := &CommandHeapSampler{Tool: "true"}
	if _, err := s.Sample(context.Background(), "111111111111"); err == nil {
		t.Fatalf("missing resolver should error")
	}
}
