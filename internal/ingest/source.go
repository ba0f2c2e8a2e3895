package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Source names; the arbiter gives "local" priority over "collector".
const (
	SourceCollector = "collector"
	SourceLocal     = "local"
)

const maxBackoff = 30 * time.Second

// SourceEvent surfaces connection-state transitions to the owner.
type SourceEvent struct {
	Source string
	Kind   string // "connected", "disconnected", "terminal"
	Detail string
}

type SourceConfig struct {
	Name string
	Host string
	Port int

	// Reconnect enables automatic redial after a transport error.
	Reconnect bool
	// ReconnectInterval is the backoff base: delay before attempt n is
	// min(interval * 1.5^(n-1), 30s).
	ReconnectInterval time.Duration
	// MaxReconnectAttempts stops redialing after this many consecutive
	// failures; 0 means unlimited.
	MaxReconnectAttempts int

	DialTimeout time.Duration
	// IdleTimeout forces a close when no bytes arrive for this long; the
	// serial-to-IP bridges these feeds ride on die silently.
	IdleTimeout time.Duration

	MaxLineBytes int

	// OnEvent, when set, is called for connection-state transitions. It
	// runs on the source's reader goroutine and must not block.
	OnEvent func(SourceEvent)
}

// Source is one persistent TCP feed. It dials, splits the byte stream on
// CR/LF, and hands each complete line to the pipeline tagged with its name.
// A trailing partial line is retained by the buffered reader until the next
// chunk arrives.
type Source struct {
	started atomic.Bool
	closed  atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
	// kick wakes a terminal run loop after an explicit reconfigure.
	kick chan struct{}

	mu   sync.RWMutex
	cfg  SourceConfig
	conn net.Conn

	connected   bool
	messages    uint64
	lastMessage time.Time
	attempts    int
	lastErr     string
	terminal    bool
}

// SourceSnapshot is the per-feed connection state.
type SourceSnapshot struct {
	Name              string `json:"name"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Connected         bool   `json:"connected"`
	MessagesReceived  uint64 `json:"messagesReceived"`
	LastMessageUTC    string `json:"lastMessageTime,omitempty"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
	LastError         string `json:"lastError,omitempty"`
	Terminal          bool   `json:"terminal,omitempty"`
}

func NewSource(cfg SourceConfig) (*Source, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("source name is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("source %s: host is required", cfg.Name)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("source %s: invalid port %d", cfg.Name, cfg.Port)
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 2 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4096
	}
	return &Source{
		cfg:  cfg,
		done: make(chan struct{}),
		kick: make(chan struct{}, 1),
	}, nil
}

// Start begins the dial/read loop on its own goroutine. onLine is invoked
// for every complete non-empty line; it runs on the reader goroutine.
func (s *Source) Start(ctx context.Context, onLine func(source string, line []byte)) error {
	if s == nil {
		return fmt.Errorf("source is nil")
	}
	if s.closed.Load() {
		return fmt.Errorf("source is closed")
	}
	if onLine == nil {
		return fmt.Errorf("onLine is nil")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		s.runLoop(runCtx, onLine)
	}()
	return nil
}

func (s *Source) Close() {
	if s == nil {
		return
	}
	if s.closed.Swap(true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	if s.started.Load() {
		<-s.done
	}
}

// Reconfigure changes the endpoint. When the address differs from the live
// connection's, the connection is forced closed so the run loop redials;
// the attempt counter and any terminal state are cleared either way.
func (s *Source) Reconfigure(host string, port int) {
	s.mu.Lock()
	changed := host != s.cfg.Host || port != s.cfg.Port
	s.cfg.Host = host
	s.cfg.Port = port
	s.attempts = 0
	s.lastErr = ""
	wasTerminal := s.terminal
	s.terminal = false
	conn := s.conn
	s.mu.Unlock()

	if changed && conn != nil {
		_ = conn.Close()
	}
	if wasTerminal {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// SetPolicy updates the reconnect policy without touching a live
// connection. Clearing a terminal state requires Reconfigure.
func (s *Source) SetPolicy(reconnect bool, interval time.Duration, maxAttempts int) {
	s.mu.Lock()
	s.cfg.Reconnect = reconnect
	if interval > 0 {
		s.cfg.ReconnectInterval = interval
	}
	s.cfg.MaxReconnectAttempts = maxAttempts
	s.mu.Unlock()
}

func (s *Source) Snapshot() SourceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := SourceSnapshot{
		Name:              s.cfg.Name,
		Host:              s.cfg.Host,
		Port:              s.cfg.Port,
		Connected:         s.connected,
		MessagesReceived:  s.messages,
		ReconnectAttempts: s.attempts,
		LastError:         s.lastErr,
		Terminal:          s.terminal,
	}
	if !s.lastMessage.IsZero() {
		out.LastMessageUTC = s.lastMessage.UTC().Format(time.RFC3339Nano)
	}
	return out
}

// ResetCounters zeroes the message counter and last-message time.
func (s *Source) ResetCounters() {
	s.mu.Lock()
	s.messages = 0
	s.lastMessage = time.Time{}
	s.mu.Unlock()
}

func (s *Source) runLoop(ctx context.Context, onLine func(source string, line []byte)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
		dialTimeout := s.cfg.DialTimeout
		s.mu.RUnlock()

		dialer := &net.Dialer{Timeout: dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !s.noteFailure(err.Error()) {
				if !s.waitForKick(ctx) {
					return
				}
			} else if !sleepCtx(ctx, s.nextDelay()) {
				return
			}
			continue
		}

		s.noteConnected(conn)
		s.readConn(ctx, conn, onLine)

		if ctx.Err() != nil {
			return
		}
		s.mu.RLock()
		reconnect := s.cfg.Reconnect
		s.mu.RUnlock()
		if !reconnect {
			return
		}
		if !sleepCtx(ctx, s.nextDelay()) {
			return
		}
	}
}

func (s *Source) readConn(ctx context.Context, conn net.Conn, onLine func(source string, line []byte)) {
	s.mu.RLock()
	idle := s.cfg.IdleTimeout
	maxLine := s.cfg.MaxLineBytes
	name := s.cfg.Name
	s.mu.RUnlock()

	// The buffer caps any single line: an endless newline-free flood from
	// a broken bridge is discarded as it streams in, never accumulated.
	reader := bufio.NewReaderSize(conn, maxLine)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		line, truncated, err := readLine(reader)
		if err != nil {
			_ = conn.Close()
			detail := err.Error()
			if os.IsTimeout(err) {
				detail = "idle timeout"
			}
			if ctx.Err() == nil {
				s.noteDisconnected(detail)
			}
			return
		}
		if truncated {
			continue
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		now := time.Now().UTC()
		s.mu.Lock()
		s.messages++
		s.lastMessage = now
		s.mu.Unlock()

		onLine(name, append([]byte(nil), line...))
	}
}

// readLine returns the next newline-terminated line. A line longer than
// the reader's buffer is consumed chunk by chunk up to its newline and
// reported as truncated, so its bytes are never retained.
func readLine(r *bufio.Reader) (line []byte, truncated bool, err error) {
	line, err = r.ReadSlice('\n')
	if err == nil {
		return line, false, nil
	}
	if err != bufio.ErrBufferFull {
		return nil, false, err
	}
	for err == bufio.ErrBufferFull {
		_, err = r.ReadSlice('\n')
	}
	return nil, true, err
}

// noteFailure records a failed attempt. It returns false once the attempt
// budget is exhausted, after emitting a single terminal event.
func (s *Source) noteFailure(detail string) bool {
	s.mu.Lock()
	s.attempts++
	s.lastErr = detail
	s.connected = false
	budget := s.cfg.MaxReconnectAttempts
	attempts := s.attempts
	onEvent := s.cfg.OnEvent
	name := s.cfg.Name
	exhausted := budget > 0 && attempts >= budget
	if exhausted {
		s.terminal = true
	}
	s.mu.Unlock()

	if exhausted && onEvent != nil {
		onEvent(SourceEvent{Source: name, Kind: "terminal",
			Detail: fmt.Sprintf("max reconnect reached after %d attempts", attempts)})
	}
	return !exhausted
}

func (s *Source) noteConnected(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.attempts = 0
	s.lastErr = ""
	s.terminal = false
	onEvent := s.cfg.OnEvent
	name := s.cfg.Name
	s.mu.Unlock()

	if onEvent != nil {
		onEvent(SourceEvent{Source: name, Kind: "connected"})
	}
}

func (s *Source) noteDisconnected(detail string) {
	s.mu.Lock()
	s.conn = nil
	s.connected = false
	s.lastErr = detail
	onEvent := s.cfg.OnEvent
	name := s.cfg.Name
	s.mu.Unlock()

	if onEvent != nil {
		onEvent(SourceEvent{Source: name, Kind: "disconnected", Detail: detail})
	}
}

func (s *Source) nextDelay() time.Duration {
	s.mu.RLock()
	base := s.cfg.ReconnectInterval
	attempt := s.attempts
	s.mu.RUnlock()
	return backoffDelay(base, attempt)
}

// backoffDelay is min(base * 1.5^(attempt-1), 30s).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(1.5, float64(attempt-1))
	if d > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(d)
}

// waitForKick blocks a terminal source until Reconfigure wakes it.
func (s *Source) waitForKick(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.kick:
		return true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
