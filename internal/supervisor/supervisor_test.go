package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/worldsmith/worldsmith/internal/artifact"
	"github.com/worldsmith/worldsmith/internal/logger"
	"github.com/worldsmith/worldsmith/internal/netguard"
	"github.com/worldsmith/worldsmith/internal/store"
	"github.com/worldsmith/worldsmith/internal/store/sqlite"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires unix shell")
	}
}

type fakeRunner struct{ out map[string]string }

func (f *fakeRunner) Run(name string, args ...string) (string, error) {
	return f.out[name+" "+strings.Join(args, " ")], nil
}

// stubJava writes a shell script that plays back console lines and
// exits with the given code, standing in for the JVM.
func stubJava(t *testing.T, dir string, lines []string, exitCode int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, l := range lines {
		b.WriteString("echo '" + l + "'\n")
	}
	fmt.Fprintf(&b, "exit %d\n", exitCode)
	p := filepath.Join(dir, "java-stub.sh")
	if err := os.WriteFile(p, []byte(b.String()), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func storeWorld(number string) store.World {
	return store.World{
		WorldNumber:  number,
		Name:         "Vanilla Server",
		Version:      "1.21",
		Software:     "Vanilla",
		ServerPort:   25565,
		JMXPort:      25585,
		RCONPort:     25575,
		RMIPort:      25586,
		RCONPassword: "Aa1aaaaaaaaaaaaaaaaa",
	}
}

func newSupervisor(t *testing.T, java string) (*Supervisor, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	guard := &netguard.Guard{JMXDir: t.TempDir(), Runner: &fakeRunner{out: map[string]string{"ss -ltnp": ""}}}
	return &Supervisor{
		Store:   db,
		Guard:   guard,
		Log:     logger.Config{Dir: t.TempDir()},
		JavaBin: java,
	}, db
}

func seedWorld(t *testing.T, db *sqlite.DB, number string) {
	t.Helper()
	_, err := db.Create(context.Background(), storeWorld(number))
	if err != nil {
		t.Fatal(err)
	}
}

func startSpec(dir, number string) StartSpec {
	return StartSpec{
		WorldNumber: number,
		Dir:         dir,
		Software:    artifact.Vanilla,
		Version:     "1.21",
		MemoryMB:    512,
		HostIP:      "127.0.0.1",
		ServerPort:  25565,
		RCONPort:    25575,
		JMXPort:     25585,
		RMIPort:     25586,
	}
}

func TestStartReachesRunningAndClearsTransient(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.21.jar"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	java := stubJava(t, t.TempDir(), []string{
		"Starting minecraft server version 1.21",
		"RCON running on 0.0.0.0:25575",
	}, 0)
	sup, db := newSupervisor(t, java)
	seedWorld(t, db, "111111111111")

	ranCallback := false
	spec := startSpec(dir, "111111111111")
	spec.OnRunning = func() { ranCallback = true }

	code, msg := sup.Start(context.Background(), spec)
	if code != 0 {
		t.Fatalf("exit code %d, msg %q", code, msg)
	}
	if !ranCallback {
		t.Fatalf("OnRunning never fired")
	}
	if sup.StateOf("111111111111") != StateStopped {
		t.Fatalf("state = %v", sup.StateOf("111111111111"))
	}
	if _, err := os.Stat(filepath.Join(dir, "serverStartupTime.txt")); err != nil {
		t.Fatalf("startup marker missing: %v", err)
	}
	w, err := db.Get(context.Background(), "111111111111")
	if err != nil {
		t.Fatal(err)
	}
	if w.ProcessID != 0 || w.ServerUser != "" || w.StartingStatus != "" {
		t.Fatalf("transient fields not cleared: %+v", w)
	}
}

func TestStartAutoStopOnEULA(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.21.jar"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	java := stubJava(t, t.TempDir(), []string{
		"You need to agree to the EULA in order to run the server.",
	}, 0)
	sup, db := newSupervisor(t, java)
	seedWorld(t, db, "222222222222")

	spec := startSpec(dir, "222222222222")
	spec.AutoStop = true
	code, msg := sup.Start(context.Background(), spec)
	if code != 0 {
		t.Fatalf("exit code %d, msg %q", code, msg)
	}
	// the run never reached ready
	if _, err := os.Stat(filepath.Join(dir, "serverStartupTime.txt")); err == nil {
		t.Fatalf("startup marker should not exist for an eula refusal")
	}
}

// pidRunner answers `ss -ltnp` with a listener row for whatever pid the
// stub server recorded, so ClosePort kills a real process.
type pidRunner struct{ pidFile string }

func (r *pidRunner) Run(name string, args ...string) (string, error) {
	if name != "ss" {
		return "", nil
	}
	b, err := os.ReadFile(r.pidFile)
	if err != nil {
		return "", nil
	}
	pid := strings.TrimSpace(string(b))
	return fmt.Sprintf(`LISTEN 0 128 0.0.0.0:25575 0.0.0.0:* users:(("java",pid=%s,fd=73))`, pid), nil
}

func TestStartAutoStopReclaimsRunningServer(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.21.jar"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	pidFile := filepath.Join(t.TempDir(), "server.pid")
	script := fmt.Sprintf(`#!/bin/sh
echo $$ > %s
echo 'RCON running on 0.0.0.0:25575'
sleep 60
`, pidFile)
	java := filepath.Join(t.TempDir(), "java-stub.sh")
	if err := os.WriteFile(java, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	sup, db := newSupervisor(t, java)
	sup.Guard.Runner = &pidRunner{pidFile: pidFile}
	seedWorld(t, db, "666666666666")

	spec := startSpec(dir, "666666666666")
	spec.AutoStop = true
	begin := time.Now()
	code, msg := sup.Start(context.Background(), spec)
	// the server only exits because the reclaim kills it; that is the
	// requested outcome and must not read as a failed run
	if code != 0 {
		t.Fatalf("exit code %d, msg %q", code, msg)
	}
	if msg != "stopped successfully" {
		t.Fatalf("msg = %q", msg)
	}
	if time.Since(begin) > 20*time.Second {
		t.Fatalf("server was not reclaimed, run took %v", time.Since(begin))
	}
	if sup.StateOf("666666666666") != StateStopped {
		t.Fatalf("state = %v", sup.StateOf("666666666666"))
	}
}

func TestStartFailsWhenJarMissing(t *testing.T) {
	requireUnix(t)
	sup, db := newSupervisor(t, "/bin/true")
	seedWorld(t, db, "333333333333")
	code, msg := sup.Start(context.Background(), startSpec(t.TempDir(), "333333333333"))
	if code != -1 || msg == "" {
		t.Fatalf("expected (-1, message), got (%d, %q)", code, msg)
	}
}

func TestStartNonZeroExit(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.21.jar"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	java := stubJava(t, t.TempDir(), []string{"boom"}, 3)
	sup, db := newSupervisor(t, java)
	seedWorld(t, db, "444444444444")
	code, msg := sup.Start(context.Background(), startSpec(dir, "444444444444"))
	if code != 3 {
		t.Fatalf("exit code %d, msg %q", code, msg)
	}
}

func TestStartCapturesConsoleLines(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.21.jar"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	java := stubJava(t, t.TempDir(), []string{"line one", "RCON running on :25575"}, 0)
	sup, db := newSupervisor(t, java)
	seedWorld(t, db, "555555555555")

	var mu sync.Mutex
	var lines []string
	spec := startSpec(dir, "555555555555")
	spec.OnLine = func(l string) {
		mu.Lock()
		lines = append(lines, l)
		mu.Unlock()
	}
	if code, msg := sup.Start(context.Background(), spec); code != 0 {
		t.Fatalf("exit code %d, msg %q", code, msg)
	}
	mu.Lock()
	joined := strings.Join(lines, "\n")
	mu.Unlock()
	if !strings.Contains(joined, "line one") {
		t.Fatalf("console lines not observed: %q", joined)
	}
	// give lumberjack a moment to flush on close
	time.Sleep(50 * time.Millisecond)
	logFile := filepath.Join(sup.Log.Dir, "555555555555.stdout.log")
	b, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("captured log: %v", err)
	}
	if !strings.Contains(string(b), "line one") {
		t.Fatalf("captured log content: %q", b)
	}
}
