// Package ipc exposes a running popkeys service to other processes over a
// unix socket: status queries and a live stream of key events.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/bnema/popkeys/internal/events"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/bnema/popkeys/internal/popkeys"
	"github.com/charmbracelet/log"
)

// DefaultQueueSize is the per-subscriber event buffer
const DefaultQueueSize = 64

// ErrServerNotRunning is returned when no daemon listens on the socket
var ErrServerNotRunning = errors.New("popkeys daemon is not running")

// Source is the service the socket server exposes
type Source interface {
	RegisterCallback(cb func(mediakey.Type)) events.Subscription
	Unsubscribe(id events.Subscription) bool
	Status() popkeys.Status
}

// SocketServer handles incoming IPC connections
type SocketServer struct {
	mu         sync.Mutex
	listener   net.Listener
	socketPath string
	source     Source
	queueSize  int
	conns      map[net.Conn]struct{}
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    bool
	seq        atomic.Uint64
	log        *log.Logger
}

// NewSocketServer creates a server for source. An empty socketPath uses the
// default location.
func NewSocketServer(source Source, socketPath string, queueSize int, logger *log.Logger) (*SocketServer, error) {
	if socketPath == "" {
		p, err := GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
		socketPath = p
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &SocketServer{
		socketPath: socketPath,
		source:     source,
		queueSize:  queueSize,
		conns:      make(map[net.Conn]struct{}),
		log:        logger.WithPrefix("ipc"),
	}, nil
}

// SocketPath returns the path the server listens on
func (s *SocketServer) SocketPath() string {
	return s.socketPath
}

// Start starts the socket server
func (s *SocketServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// Remove existing socket file if it exists
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket listener: %w", err)
	}

	// Set socket permissions (user only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptConnections(ctx)

	s.log.Info("IPC socket server started", "path", s.socketPath)
	return nil
}

// Stop closes the listener and every open connection, then waits for the handlers
func (s *SocketServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false

	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	// Clean up socket file
	os.RemoveAll(s.socketPath)

	s.log.Info("IPC socket server stopped")
}

func (s *SocketServer) acceptConnections(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("Failed to accept connection", "err", err)
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// track registers conn so Stop can close it; false once the server is stopping
func (s *SocketServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *SocketServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConnection answers requests until the peer subscribes or disconnects
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	s.log.Debug("New IPC connection established")

	for {
		msg, err := readMessage(conn)
		if err != nil {
			if !isClosed(err) {
				s.log.Debug("Connection read error", "err", err)
			}
			return
		}

		switch msg.Type {
		case MessageTypeStatus:
			if err := writeMessage(conn, NewStatusResponseMessage(s.status())); err != nil {
				s.log.Error("Failed to send response", "err", err)
				return
			}

		case MessageTypeSubscribe:
			s.stream(ctx, conn)
			return

		default:
			reply := NewErrorMessage(fmt.Sprintf("Unknown message type: %s", msg.Type))
			if err := writeMessage(conn, reply); err != nil {
				s.log.Error("Failed to send response", "err", err)
				return
			}
		}
	}
}

func (s *SocketServer) status() *StatusResponse {
	st := s.source.Status()
	return &StatusResponse{
		AppName:     st.AppName,
		Backend:     st.Backend,
		Kind:        st.Kind.String(),
		Grabbed:     st.Grabbed,
		Subscribers: int32(st.Subscribers), //nolint:gosec // subscriber count is small
	}
}

// stream forwards key events to conn until it disconnects. The callback only
// enqueues, so a slow peer loses events instead of stalling the backend loop.
func (s *SocketServer) stream(ctx context.Context, conn net.Conn) {
	queue := make(chan *Message, s.queueSize)

	id := s.source.RegisterCallback(func(key mediakey.Type) {
		msg := NewKeyEventMessage(key, time.Now(), s.seq.Add(1))
		select {
		case queue <- msg:
		default:
			s.log.Warn("Subscriber queue full, dropping key event", "key", key)
		}
	})
	defer s.source.Unsubscribe(id)

	s.log.Debug("Subscriber attached", "subscription", id)

	// Subscribers never send after SUBSCRIBE; a read returning means they left
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			s.log.Debug("Subscriber detached", "subscription", id)
			return
		case msg := <-queue:
			if err := writeMessage(conn, msg); err != nil {
				s.log.Debug("Failed to write key event", "err", err)
				return
			}
		}
	}
}

// GetSocketPath returns $XDG_RUNTIME_DIR/popkeys/popkeys.sock, falling back
// to /tmp/popkeys-{username}.sock
func GetSocketPath() (string, error) {
	if p, err := xdg.RuntimeFile(filepath.Join("popkeys", "popkeys.sock")); err == nil {
		return p, nil
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("popkeys-%s.sock", currentUser.Username)), nil
}
