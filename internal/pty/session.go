package pty

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/cruxpanel/backend/internal/infrastructure/logger"
)

// SessionState tracks the lifecycle of an interactive shell session.
type SessionState string

const (
	StateStarting   SessionState = "starting"
	StateAttached   SessionState = "attached"
	StateTerminated SessionState = "terminated"
)

// Session wraps a shell process attached to a pseudo-terminal. Output is
// delivered in order on Output(); the channel is closed after a final
// notice once the shell exits or the session is closed.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	cmd    *exec.Cmd
	file   *os.File
	output chan []byte
	done   chan struct{}
	logger *logger.Logger
}

type Options struct {
	Shell string
	Rows  uint16
	Cols  uint16
}

// Start launches the shell under a new pseudo-terminal with the given
// initial window size.
func Start(opts Options, log *logger.Logger) (*Session, error) {
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	if opts.Cols == 0 {
		opts.Cols = 80
	}

	s := &Session{
		state:  StateStarting,
		output: make(chan []byte, 32),
		done:   make(chan struct{}),
		logger: log,
	}

	cmd := exec.Command(opts.Shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: opts.Rows, Cols: opts.Cols})
	if err != nil {
		return nil, fmt.Errorf("pty: failed to start shell: %w", err)
	}

	s.cmd = cmd
	s.file = f
	s.state = StateAttached

	go s.readLoop()

	log.Infow("terminal_session_started",
		"shell", opts.Shell,
		"pid", cmd.Process.Pid,
		"rows", opts.Rows,
		"cols", opts.Cols,
	)
	return s, nil
}

func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.file.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.output <- chunk:
			case <-s.done:
				s.finish()
				return
			}
		}
		if err != nil {
			s.finish()
			return
		}
	}
}

// finish waits for the shell, emits the exit notice and closes output.
// Safe to reach from both the read loop and Close.
func (s *Session) finish() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	s.mu.Unlock()

	err := s.cmd.Wait()
	notice := "\r\n[session terminated]\r\n"
	if err != nil {
		notice = fmt.Sprintf("\r\n[session terminated: %v]\r\n", err)
	}
	select {
	case s.output <- []byte(notice):
	default:
	}
	close(s.output)
	s.file.Close()
}

// Output returns the ordered stream of terminal output. Closed after the
// final exit notice.
func (s *Session) Output() <-chan []byte {
	return s.output
}

// Write forwards user input to the shell.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	if s.state != StateAttached {
		s.mu.Unlock()
		return fmt.Errorf("pty: session not attached")
	}
	s.mu.Unlock()
	_, err := s.file.Write(p)
	return err
}

// Resize adjusts the pseudo-terminal window.
func (s *Session) Resize(rows, cols uint16) error {
	s.mu.Lock()
	if s.state != StateAttached {
		s.mu.Unlock()
		return fmt.Errorf("pty: session not attached")
	}
	s.mu.Unlock()
	return pty.Setsize(s.file, &pty.Winsize{Rows: rows, Cols: cols})
}

// State reports the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close kills the shell if it is still running. The read loop drains the
// remaining output and emits the exit notice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}
