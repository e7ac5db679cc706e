// Package console wraps the remote console protocol used to talk to a
// running game server.
package console

import (
	"fmt"
	"time"

	"github.com/gorcon/rcon"
)

// Console is a connected remote console session. Implementations are
// not safe for concurrent use.
type Console interface {
	Send(command string) (string, error)
	Close() error
}

// Dialer opens console sessions. The shutdown and bootstrap paths take
// a Dialer so tests can substitute an in-memory console.
type Dialer interface {
	Dial(addr, password string) (Console, error)
}

// DefaultDialTimeout bounds connection attempts to servers that are
// still booting or already gone.
const DefaultDialTimeout = 5 * time.Second

// RCONDialer dials real servers over the RCON protocol.
type RCONDialer struct {
	Timeout time.Duration
}

func (d RCONDialer) Dial(addr, password string) (Console, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	conn, err := rcon.Dial(addr, password, rcon.SetDialTimeout(timeout), rcon.SetDeadline(timeout))
	if err != nil {
		return nil, fmt.Errorf("console: dial %s: %w", addr, err)
	}
	return &rconConsole{conn: conn}, nil
}

type rconConsole struct {
	conn *rcon.Conn
}

func (c *rconConsole) Send(command string) (string, error) {
	out, err := c.conn.Execute(command)
	if err != nil {
		return "", fmt.Errorf("console: %q: %w", command, err)
	}
	return out, nil
}

func (c *rconConsole) Close() error { return c.conn.Close() }
