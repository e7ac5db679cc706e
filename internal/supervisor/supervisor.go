// Package supervisor spawns and watches game-server processes. Startup
// progress is read from the server's own console output; port and
// firewall preconditions are repaired before every launch.
package supervisor

import (
	"bufio"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/worldsmith/worldsmith/internal/artifact"
	"github.com/worldsmith/worldsmith/internal/logger"
	"github.com/worldsmith/worldsmith/internal/netguard"
	"github.com/worldsmith/worldsmith/internal/store"
)

// State is the lifecycle position of one supervised run.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// SessionUser is the management account written for every run.
const SessionUser = "admin"

// DefaultStartupWatch is how long a foreground start may take to reach
// the ready banner before the run is reclaimed.
const DefaultStartupWatch = 30 * time.Second

// StartSpec describes one supervised server run.
type StartSpec struct {
	WorldNumber string
	Dir         string
	Software    artifact.Software
	Version     string
	MemoryMB    int
	HostIP      string
	ServerPort  int
	RCONPort    int
	JMXPort     int
	RMIPort     int
	// AutoStop reclaims the ports as soon as the server reports ready
	// (or refuses on the license). Used by provisioning runs that only
	// need the server to generate its files.
	AutoStop bool
	// OnRunning fires once when the ready banner is seen.
	OnRunning func()
	// OnLine observes every console line.
	OnLine func(line string)
}

// Supervisor launches server processes and tracks them to exit.
type Supervisor struct {
	Store store.Store
	Guard *netguard.Guard
	Log   logger.Config
	Rules []Rule
	// JavaBin overrides the java executable, for tests.
	JavaBin string
	// StartupWatch overrides the ready-banner deadline.
	StartupWatch time.Duration

	mu     sync.Mutex
	states map[string]State
}

func (s *Supervisor) rules() []Rule {
	if len(s.Rules) > 0 {
		return s.Rules
	}
	return DefaultRules
}

func (s *Supervisor) java() string {
	if s.JavaBin != "" {
		return s.JavaBin
	}
	return "java"
}

func (s *Supervisor) watch() time.Duration {
	if s.StartupWatch > 0 {
		return s.StartupWatch
	}
	return DefaultStartupWatch
}

func (s *Supervisor) setState(world string, st State) {
	s.mu.Lock()
	if s.states == nil {
		s.states = make(map[string]State)
	}
	s.states[world] = st
	s.mu.Unlock()
	slog.Debug("world state", "world", world, "state", st.String())
}

// StateOf reports the last observed state for a world.
func (s *Supervisor) StateOf(world string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[world]
}

// SessionPassword returns a fresh five-digit management password.
func SessionPassword() string {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		// crypto/rand failing means the platform is broken; a fixed
		// session password still only lives for one run.
		return "10000"
	}
	return fmt.Sprintf("%05d", n.Int64()+10000)
}

// Start launches the world's server and blocks until the process
// exits. It returns the exit code and a human-readable message; every
// failure is reported as (-1, message).
func (s *Supervisor) Start(ctx context.Context, spec StartSpec) (int, string) {
	s.setState(spec.WorldNumber, StateStarting)

	if err := netguard.WaitPortsFree(ctx, spec.RCONPort, spec.JMXPort); err != nil {
		s.setState(spec.WorldNumber, StateFailed)
		return -1, fmt.Sprintf("ports busy: %v", err)
	}

	sessionPsw := SessionPassword()
	if !s.Guard.CheckNetworkConfigured(spec.ServerPort, spec.JMXPort, spec.RMIPort) {
		if err := s.Guard.Setup(SessionUser, sessionPsw, spec.ServerPort, spec.JMXPort, spec.RMIPort); err != nil {
			s.setState(spec.WorldNumber, StateFailed)
			return -1, fmt.Sprintf("network setup: %v", err)
		}
	} else if err := s.Guard.WriteCredentials(SessionUser, sessionPsw); err != nil {
		s.setState(spec.WorldNumber, StateFailed)
		return -1, fmt.Sprintf("session credentials: %v", err)
	}

	args, err := LaunchArgs(LaunchSpec{
		Dir:          spec.Dir,
		Software:     spec.Software,
		Version:      spec.Version,
		MemoryMB:     spec.MemoryMB,
		HostIP:       spec.HostIP,
		JMXPort:      spec.JMXPort,
		RMIPort:      spec.RMIPort,
		AccessFile:   s.Guard.AccessFile(),
		PasswordFile: s.Guard.PasswordFile(),
	})
	if err != nil {
		s.setState(spec.WorldNumber, StateFailed)
		return -1, err.Error()
	}

	cmd := exec.Command(s.java(), args...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(spec.WorldNumber, StateFailed)
		return -1, fmt.Sprintf("stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.setState(spec.WorldNumber, StateFailed)
		return -1, fmt.Sprintf("stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		s.setState(spec.WorldNumber, StateFailed)
		return -1, fmt.Sprintf("spawn: %v", err)
	}
	pid := cmd.Process.Pid
	slog.Info("server starting", "world", spec.WorldNumber, "pid", pid, "software", spec.Software, "version", spec.Version)

	if s.Store != nil {
		tr := store.Transient{ServerUser: SessionUser, ServerTempPsw: sessionPsw, ProcessID: pid, StartingStatus: "starting"}
		if err := s.Store.SetTransient(ctx, spec.WorldNumber, tr); err != nil {
			slog.Warn("transient state not persisted", "world", spec.WorldNumber, "error", err)
		}
	}

	outW, errW, _ := s.Log.Writers(spec.WorldNumber)
	closeWriters := func() {
		if outW != nil {
			_ = outW.Close()
		}
		if errW != nil {
			_ = errW.Close()
		}
	}

	var once sync.Once
	ready := make(chan struct{})
	markReady := func() {
		once.Do(func() {
			close(ready)
			s.setState(spec.WorldNumber, StateRunning)
			s.recordStartupTime(spec.Dir)
			if spec.OnRunning != nil {
				spec.OnRunning()
			}
		})
	}

	var stopOnce sync.Once
	var reclaimed atomic.Bool
	reclaim := func(reason string) {
		stopOnce.Do(func() {
			reclaimed.Store(true)
			s.setState(spec.WorldNumber, StateStopping)
			slog.Info("reclaiming server ports", "world", spec.WorldNumber, "reason", reason)
			s.Kill(spec.RCONPort, spec.JMXPort)
		})
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader, w io.Writer) {
		defer wg.Done()
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if w != nil {
				_, _ = fmt.Fprintln(w, line)
			}
			if spec.OnLine != nil {
				spec.OnLine(line)
			}
			switch Classify(line, s.rules()) {
			case EventRCONReady:
				markReady()
				if spec.AutoStop {
					reclaim("ready")
				}
			case EventEULARequired:
				if spec.AutoStop {
					reclaim("eula")
				}
			case EventStartupDone:
				if spec.AutoStop {
					reclaim("done")
				}
			}
		}
	}
	wg.Add(2)
	go scan(stdout, writerOrNil(outW))
	go scan(stderr, writerOrNil(errW))

	// Foreground runs that never reach ready are reclaimed so the
	// ports cannot stay wedged behind a hung JVM.
	var timer *time.Timer
	if !spec.AutoStop {
		timer = time.AfterFunc(s.watch(), func() {
			select {
			case <-ready:
			default:
				reclaim("startup timeout")
			}
		})
	}

	// Drain the scanners before Wait: Wait closes the pipes once the
	// child exits and would race the readers out of trailing output.
	wg.Wait()
	waitErr := cmd.Wait()
	if timer != nil {
		timer.Stop()
	}
	closeWriters()

	if s.Store != nil {
		if err := s.Store.ClearTransient(context.Background(), spec.WorldNumber); err != nil {
			slog.Warn("transient state not cleared", "world", spec.WorldNumber, "error", err)
		}
	}

	code := 0
	msg := ""
	switch {
	case reclaimed.Load():
		// a reclaim kill is the requested outcome, not a failure; the
		// signal death the JVM reports is ours
		msg = "stopped successfully"
	case waitErr != nil:
		if ee, ok := waitErr.(*exec.ExitError); ok {
			code = ee.ExitCode()
			msg = fmt.Sprintf("server exited with code %d", code)
		} else {
			s.setState(spec.WorldNumber, StateFailed)
			return -1, fmt.Sprintf("wait: %v", waitErr)
		}
	}
	s.setState(spec.WorldNumber, StateStopped)
	slog.Info("server exited", "world", spec.WorldNumber, "code", code)
	return code, msg
}

func writerOrNil(w io.WriteCloser) io.Writer {
	if w == nil {
		return nil
	}
	return w
}

// recordStartupTime stamps the world directory with the moment the
// server reported ready; uptime reporting reads it back.
func (s *Supervisor) recordStartupTime(dir string) {
	p := filepath.Join(dir, "serverStartupTime.txt")
	if err := os.WriteFile(p, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		slog.Warn("startup time marker", "path", p, "error", err)
	}
}

// Kill reclaims a world's remote-management ports. Nothing listening on
// either port is success.
func (s *Supervisor) Kill(rconPort, jmxPort int) {
	for _, p := range []int{rconPort, jmxPort} {
		if err := s.Guard.ClosePort(p); err != nil {
			slog.Warn("port not reclaimed", "port", p, "error", err)
		}
	}
}
