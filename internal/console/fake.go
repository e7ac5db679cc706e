package console

import "sync"

// FakeConsole records commands for tests. SendErr, when set, is
// returned from every Send.
type FakeConsole struct {
	mu       sync.Mutex
	Commands []string
	SendErr  error
	Closed   bool
}

func (f *FakeConsole) Send(command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return "", f.SendErr
	}
	f.Commands = append(f.Commands, command)
	return "", nil
}

func (f *FakeConsole) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Sent returns a copy of the recorded command list.
func (f *FakeConsole) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Commands))
	copy(out, f.Commands)
	return out
}

// FakeDialer hands out a fixed console, or fails with DialErr.
type FakeDialer struct {
	Console *FakeConsole
	DialErr error
	Dials   int
}

func (f *FakeDialer) Dial(addr, password string) (Console, error) {
	f.Dials++
	if f.DialErr != nil {
		return nil, f.DialErr
	}
	return f.Console, nil
}
