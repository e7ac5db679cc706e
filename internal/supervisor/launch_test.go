package supervisor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/worldsmith/worldsmith/internal/artifact"
)

func baseSpec(dir string) LaunchSpec {
	return LaunchSpec{
		Dir:          dir,
		Software:     artifact.Vanilla,
		Version:      "1.21",
		MemoryMB:     2048,
		HostIP:       "10.0.0.5",
		JMXPort:      25585,
		RMIPort:      25586,
		AccessFile:   "/jmx/jmxremote.access",
		PasswordFile: "/jmx/jmxremote.password",
	}
}

func TestLaunchArgsVanilla(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.21.jar"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	args, err := LaunchArgs(baseSpec(dir))
	if err != nil {
		t.Fatalf("launch args: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-Xmx2048M", "-Xms2048M",
		"-Dcom.sun.management.jmxremote.port=25585",
		"-Dcom.sun.management.jmxremote.rmi.port=25586",
		"-Dcom.sun.management.jmxremote.ssl=false",
		"-Dcom.sun.management.jmxremote.authenticate=true",
		"-Djava.rmi.server.hostname=10.0.0.5",
		"-jar 1.21.jar nogui",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestLaunchArgsMissingJar(t *testing.T) {
	if _, err := LaunchArgs(baseSpec(t.TempDir())); err == nil {
		t.Fatalf("expected error when versioned jar is absent")
	}
}

func TestLaunchArgsForgeArgsFile(t *testing.T) {
	dir := t.TempDir()
	argDir := filepath.Join(dir, "libraries", "net", "minecraftforge", "forge", "1.20.1-47.2.0")
	if err := os.MkdirAll(argDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(argDir, "unix_args.txt"), []byte("-p x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := baseSpec(dir)
	s.Software = artifact.Forge
	args, err := LaunchArgs(s)
	if err != nil {
		t.Fatalf("launch args: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "@libraries/net/minecraftforge/forge/1.20.1-47.2.0/unix_args.txt") {
		t.Fatalf("argument file not referenced: %s", joined)
	}
	if !strings.HasSuffix(joined, "nogui") {
		t.Fatalf("nogui missing: %s", joined)
	}
}

func TestLaunchArgsForgeJarFallback(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"forge-1.12.2-universal.jar", "minecraft_server.1.12.2.jar"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s := baseSpec(dir)
	s.Software = artifact.Forge
	args, err := LaunchArgs(s)
	if err != nil {
		t.Fatalf("launch args: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-jar forge-1.12.2-universal.jar") {
		t.Fatalf("forge jar not selected: %s", joined)
	}
}
