// Package shutdown stops running worlds gracefully: a player-facing
// countdown over the remote console, a world save, then the stop
// command. Console failures degrade to messages; a server that cannot
// be reached is already as stopped as it gets.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/worldsmith/worldsmith/internal/console"
	"github.com/worldsmith/worldsmith/internal/store"
)

// MaxGraceSeconds caps the countdown at ninety minutes.
const MaxGraceSeconds = 5400

// StopRequest describes a graceful stop.
type StopRequest struct {
	WorldNumber string
	Host        string
	// Grace is the countdown duration as "MM:SS". Empty means stop
	// immediately.
	Grace string
	// Action names what happens when the countdown ends, spoken in the
	// broadcast messages ("stop", "restart").
	Action string
}

// Controller performs graceful stops against the credential store's
// connection details.
type Controller struct {
	Store  store.Store
	Dialer console.Dialer
}

// ParseGrace converts "MM:SS" to seconds, capped at MaxGraceSeconds.
func ParseGrace(grace string) (int, error) {
	if grace == "" {
		return 0, nil
	}
	parts := strings.Split(grace, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("shutdown: grace %q is not MM:SS", grace)
	}
	m, err1 := strconv.Atoi(parts[0])
	s, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || m < 0 || s < 0 || s > 59 {
		return 0, fmt.Errorf("shutdown: grace %q is not MM:SS", grace)
	}
	total := m*60 + s
	if total > MaxGraceSeconds {
		total = MaxGraceSeconds
	}
	return total, nil
}

// MilestoneMessage returns the broadcast for second i of a countdown
// (counting down to zero), or false when the second passes silently.
func MilestoneMessage(i int, action string) (string, bool) {
	switch {
	case i%600 == 0 && i > 600:
		return fmt.Sprintf("say Server will %s in %d minutes!", action, i/60), true
	case i == 600:
		return fmt.Sprintf("say Server will %s in 10 minutes!", action), true
	case i == 300:
		return fmt.Sprintf("say Server will %s in 5 minutes!", action), true
	case i == 60:
		return fmt.Sprintf("say Server will %s in 1 minute!", action), true
	case i == 30:
		return fmt.Sprintf("say Server will %s in 30 seconds!", action), true
	case i <= 10 && i > 0:
		return fmt.Sprintf("say %d", i), true
	}
	return "", false
}

// Stop runs the countdown and stops the world's server. The result is
// always a human-readable message; console errors are reported, not
// returned.
func (c *Controller) Stop(ctx context.Context, req StopRequest) string {
	action := req.Action
	if action == "" {
		action = "stop"
	}
	total, err := ParseGrace(req.Grace)
	if err != nil {
		return err.Error()
	}

	w, err := c.Store.Get(ctx, req.WorldNumber)
	if err != nil {
		return fmt.Sprintf("world %s: %v", req.WorldNumber, err)
	}
	host := req.Host
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(w.RCONPort))

	session, err := c.Dialer.Dial(addr, w.RCONPassword)
	if err != nil {
		c.clearTransient(req.WorldNumber)
		return fmt.Sprintf("console unreachable, assuming server is down: %v", err)
	}
	defer func() { _ = session.Close() }()

	msg := c.countdown(ctx, session, total, action)

	if _, err := session.Send("save-all flush"); err != nil {
		msg = appendNote(msg, fmt.Sprintf("world save failed: %v", err))
	}
	if _, err := session.Send("stop"); err != nil {
		msg = appendNote(msg, fmt.Sprintf("stop command failed: %v", err))
	}
	c.clearTransient(req.WorldNumber)
	if msg == "" {
		msg = "server stopped"
	}
	slog.Info("world stopped", "world", req.WorldNumber, "action", action)
	return msg
}

// countdown broadcasts the milestone schedule, correcting each slot for
// the time the console round-trip consumed.
func (c *Controller) countdown(ctx context.Context, session console.Console, total int, action string) string {
	if total <= 0 {
		return ""
	}
	if _, err := session.Send(fmt.Sprintf("say Server will %s in %dm %ds!", action, total/60, total%60)); err != nil {
		return fmt.Sprintf("countdown announce failed: %v", err)
	}
	for i := total; i >= 1; i-- {
		slot := time.Now()
		if m, ok := MilestoneMessage(i, action); ok {
			if _, err := session.Send(m); err != nil {
				// keep counting; the stop itself matters more than the
				// broadcasts
				slog.Warn("countdown broadcast failed", "second", i, "error", err)
			}
		}
		remaining := time.Second - time.Since(slot)
		if remaining > 0 {
			select {
			case <-ctx.Done():
				return "countdown aborted"
			case <-time.After(remaining):
			}
		}
	}
	return ""
}

func (c *Controller) clearTransient(worldNumber string) {
	err := c.Store.ClearTransient(context.Background(), worldNumber)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("transient fields not cleared", "world", worldNumber, "error", err)
	}
}

func appendNote(msg, note string) string {
	if msg == "" {
		return note
	}
	return msg + "; " + note
}

// Restart stops the world and hands control to the caller's start
// function once the stop completes.
func (c *Controller) Restart(ctx context.Context, req StopRequest, start func(context.Context) (int, string)) string {
	req.Action = "restart"
	msg := c.Stop(ctx, req)
	code, startMsg := start(ctx)
	if code != 0 {
		return appendNote(msg, fmt.Sprintf("restart failed: %s", startMsg))
	}
	return appendNote(msg, "server restarted")
}
