// Package pty manages pseudo-terminal sessions for interactive
// subprocesses (shells, REPLs), per SPEC_FULL.md §4.8. Grounded on
// github.com/creack/pty for the terminal allocation itself and on the
// teacher's shell process registry for session bookkeeping.
package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// overflowMarker is inserted once scrollback drops its oldest bytes to
// make space for new output.
const overflowMarker = "\n[output size limit exceeded, oldest output dropped]\n"

var (
	// ErrSessionNotFound is returned by any operation referencing an
	// unknown session id.
	ErrSessionNotFound = errors.New("pty session not found")
	// ErrTooManySessions is returned by Create once MaxSessions is reached.
	ErrTooManySessions = errors.New("pty session limit reached")
)

// Dimensions is a terminal's row/column size.
type Dimensions struct {
	Rows uint16
	Cols uint16
}

// Session is one managed pseudo-terminal: a running (or exited) command
// plus its bounded scrollback ring.
type Session struct {
	ID      string
	Command string

	mu         sync.Mutex
	file       *os.File
	cmd        *exec.Cmd
	dims       Dimensions
	scrollback []byte
	maxLines   int
	maxBytes   int
	exitCode   *int
	closed     bool
}

// write appends output to the scrollback ring, dropping the oldest
// bytes (and inserting overflowMarker once) when maxBytes is exceeded.
func (s *Session) write(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollback = append(s.scrollback, chunk...)
	if s.maxBytes > 0 && len(s.scrollback) > s.maxBytes {
		overflowAt := len(s.scrollback) - s.maxBytes
		s.scrollback = append([]byte(overflowMarker), s.scrollback[overflowAt:]...)
	}
	if s.maxLines > 0 {
		s.scrollback = capLines(s.scrollback, s.maxLines)
	}
}

func capLines(buf []byte, maxLines int) []byte {
	lines := 0
	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i] == '\n' {
			lines++
			if lines > maxLines {
				return buf[i+1:]
			}
		}
	}
	return buf
}

// Read returns the current scrollback contents.
func (s *Session) Read() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.scrollback))
	copy(out, s.scrollback)
	return out
}

// ExitCode returns the command's exit code once known.
func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

// Manager tracks all live PTY sessions for a process, enforcing
// MaxSessions.
type Manager struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	maxSessions  int
	defaultShell string
	defaultDims  Dimensions
	scrollLines  int
	scrollBytes  int
	nextID       int
}

// Config configures the manager's defaults, mirroring config.PTYConfig.
type Config struct {
	DefaultShell    string
	DefaultCols     int
	DefaultRows     int
	ScrollbackLines int
	ScrollbackBytes int
	MaxSessions     int
}

// NewManager creates an empty PTY session manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		maxSessions:  cfg.MaxSessions,
		defaultShell: cfg.DefaultShell,
		defaultDims:  Dimensions{Rows: uint16(cfg.DefaultRows), Cols: uint16(cfg.DefaultCols)},
		scrollLines:  cfg.ScrollbackLines,
		scrollBytes:  cfg.ScrollbackBytes,
	}
}

// Create starts a new pseudo-terminal running command (or the default
// shell, if command is empty) with the given working directory and
// environment overrides.
func (m *Manager) Create(command, dir string, env []string, dims Dimensions) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.nextID++
	id := fmt.Sprintf("pty-%d", m.nextID)
	m.mu.Unlock()

	if command == "" {
		command = m.defaultShell
	}
	if dims.Rows == 0 {
		dims = m.defaultDims
	}

	cmd := exec.Command(command)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: dims.Rows, Cols: dims.Cols})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	session := &Session{
		ID:       id,
		Command:  command,
		file:     f,
		cmd:      cmd,
		dims:     dims,
		maxLines: m.scrollLines,
		maxBytes: m.scrollBytes,
	}

	go session.pump()
	go session.wait()

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	return session, nil
}

func (s *Session) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.file.Read(buf)
		if n > 0 {
			s.write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) wait() {
	err := s.cmd.Wait()
	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	s.mu.Lock()
	s.exitCode = &code
	s.mu.Unlock()
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns every tracked session id.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SendInput writes text to the session's stdin.
func (m *Manager) SendInput(id, text string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	f := s.file
	s.mu.Unlock()
	_, err := f.Write([]byte(text))
	return err
}

// Resize updates a session's terminal dimensions.
func (m *Manager) Resize(id string, dims Dimensions) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	s.dims = dims
	f := s.file
	s.mu.Unlock()
	return pty.Setsize(f, &pty.Winsize{Rows: dims.Rows, Cols: dims.Cols})
}

// Close terminates a session and removes it from the manager.
func (m *Manager) Close(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		_ = s.file.Close()
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	}
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}
