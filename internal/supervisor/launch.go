package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/worldsmith/worldsmith/internal/artifact"
)

// LaunchSpec carries everything needed to build a server's java
// invocation.
type LaunchSpec struct {
	Dir          string
	Software     artifact.Software
	Version      string
	MemoryMB     int
	HostIP       string
	JMXPort      int
	RMIPort      int
	AccessFile   string
	PasswordFile string
}

// LaunchArgs builds the java argument vector for a world. Most
// distributions run the versioned jar directly; Forge ships a
// generated argument file referencing its module path, with a jar
// lookup as fallback for old releases.
func LaunchArgs(s LaunchSpec) ([]string, error) {
	args := []string{
		fmt.Sprintf("-Xmx%dM", s.MemoryMB),
		fmt.Sprintf("-Xms%dM", s.MemoryMB),
		"-Dcom.sun.management.jmxremote",
		fmt.Sprintf("-Dcom.sun.management.jmxremote.port=%d", s.JMXPort),
		fmt.Sprintf("-Dcom.sun.management.jmxremote.rmi.port=%d", s.RMIPort),
		"-Dcom.sun.management.jmxremote.ssl=false",
		"-Dcom.sun.management.jmxremote.authenticate=true",
		fmt.Sprintf("-Dcom.sun.management.jmxremote.access.file=%s", s.AccessFile),
		fmt.Sprintf("-Dcom.sun.management.jmxremote.password.file=%s", s.PasswordFile),
		fmt.Sprintf("-Djava.rmi.server.hostname=%s", s.HostIP),
	}

	if s.Software == artifact.Forge {
		if argFile, ok := forgeArgsFile(s.Dir); ok {
			args = append(args, "@"+argFile, "nogui")
			return args, nil
		}
		jar := artifact.ClosestJarFile(artifact.ListJars(s.Dir), "forge-")
		if jar == "" {
			jar = artifact.ClosestJarFile(artifact.ListJars(s.Dir), "minecraft_server")
		}
		if jar == "" {
			return nil, fmt.Errorf("supervisor: no runnable jar in %s", s.Dir)
		}
		args = append(args, "-jar", jar, "nogui")
		return args, nil
	}

	jar := s.Version + ".jar"
	if _, err := os.Stat(filepath.Join(s.Dir, jar)); err != nil {
		return nil, fmt.Errorf("supervisor: %s: %w", jar, err)
	}
	args = append(args, "-jar", jar, "nogui")
	return args, nil
}

// forgeArgsFile locates the argument file the Forge installer writes
// under libraries/, relative to the world directory.
func forgeArgsFile(dir string) (string, bool) {
	var found string
	_ = filepath.WalkDir(filepath.Join(dir, "libraries"), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == "unix_args.txt" {
			rel, rerr := filepath.Rel(dir, path)
			if rerr == nil {
				found = rel
			}
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
