package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// Client talks to a running popkeys daemon
type Client struct {
	socketPath string
	timeout    time.Duration
	log        *log.Logger
}

// NewClient creates a client for socketPath, or the default socket when empty
func NewClient(socketPath string, logger *log.Logger) (*Client, error) {
	if socketPath == "" {
		p, err := GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
		socketPath = p
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
		log:        logger.WithPrefix("ipc-client"),
	}, nil
}

// SetTimeout changes the dial and request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Status queries the daemon state
func (c *Client) Status() (*StatusResponse, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			c.log.Debug("Failed to close IPC connection", "err", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		c.log.Warn("Failed to set connection deadline", "err", err)
	}

	if err := writeMessage(conn, NewStatusMessage()); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	response, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch response.Type {
	case MessageTypeStatusResponse:
		return GetStatusResponse(response)
	case MessageTypeError:
		return nil, fmt.Errorf("server error: %s", response.Error)
	default:
		return nil, fmt.Errorf("unexpected response type: %s", response.Type)
	}
}

// IsRunning reports whether a daemon answers on the socket
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

// Subscribe streams key events to fn until ctx is done or the daemon goes away.
// A cancelled context is not an error.
func (c *Client) Subscribe(ctx context.Context, fn func(*KeyEvent)) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := writeMessage(conn, NewSubscribeMessage()); err != nil {
		return fmt.Errorf("failed to send subscribe: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		msg, err := readMessage(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isClosed(err) {
				return fmt.Errorf("daemon closed the event stream: %w", err)
			}
			return err
		}

		switch msg.Type {
		case MessageTypeKeyEvent:
			ev, err := GetKeyEvent(msg)
			if err != nil {
				c.log.Debug("Dropping malformed key event", "err", err)
				continue
			}
			fn(ev)
		case MessageTypeError:
			return fmt.Errorf("server error: %s", msg.Error)
		default:
			c.log.Debug("Ignoring unexpected message", "type", msg.Type)
		}
	}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isNotListening(err) {
			return nil, ErrServerNotRunning
		}
		return nil, fmt.Errorf("failed to connect to popkeys: %w", err)
	}
	return conn, nil
}

// isNotListening reports whether nothing is bound to the socket
func isNotListening(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
