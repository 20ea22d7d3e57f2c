package ipc

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/popkeys/internal/bridge"
	"github.com/bnema/popkeys/internal/events"
	"github.com/bnema/popkeys/internal/logger"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/bnema/popkeys/internal/popkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mgr *events.Manager
}

func newFakeSource() *fakeSource {
	return &fakeSource{mgr: events.NewManager(logger.Discard())}
}

func (f *fakeSource) RegisterCallback(cb func(mediakey.Type)) events.Subscription {
	return f.mgr.Subscribe(cb)
}

func (f *fakeSource) Unsubscribe(id events.Subscription) bool {
	return f.mgr.Unsubscribe(id)
}

func (f *fakeSource) Status() popkeys.Status {
	return popkeys.Status{
		AppName:     "PopcornKeys",
		Backend:     "gnome-settings-daemon",
		Kind:        bridge.KindGnomeLike,
		Grabbed:     true,
		Subscribers: f.mgr.Len(),
	}
}

func startTestServer(t *testing.T, queueSize int) (*SocketServer, *fakeSource, *Client) {
	t.Helper()
	src := newFakeSource()
	path := filepath.Join(t.TempDir(), "popkeys.sock")

	server, err := NewSocketServer(src, path, queueSize, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)

	client, err := NewClient(path, logger.Discard())
	require.NoError(t, err)
	return server, src, client
}

func TestSocketServerStartStop(t *testing.T) {
	server, _, _ := startTestServer(t, 0)

	info, err := os.Stat(server.SocketPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// Starting twice is a no-op
	require.NoError(t, server.Start())

	server.Stop()
	server.Stop()

	_, err = os.Stat(server.SocketPath())
	assert.True(t, os.IsNotExist(err))
}

func TestClientStatus(t *testing.T) {
	_, _, client := startTestServer(t, 0)

	st, err := client.Status()
	require.NoError(t, err)
	assert.Equal(t, "PopcornKeys", st.AppName)
	assert.Equal(t, "gnome-settings-daemon", st.Backend)
	assert.Equal(t, "gnome", st.Kind)
	assert.True(t, st.Grabbed)
	assert.Equal(t, int32(0), st.Subscribers)
	assert.True(t, client.IsRunning())
}

func TestClientWithoutServer(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "missing.sock"), logger.Discard())
	require.NoError(t, err)

	_, err = client.Status()
	assert.ErrorIs(t, err, ErrServerNotRunning)
	assert.False(t, client.IsRunning())

	err = client.Subscribe(context.Background(), func(*KeyEvent) {})
	assert.ErrorIs(t, err, ErrServerNotRunning)
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	_, src, client := startTestServer(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *KeyEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(ctx, func(ev *KeyEvent) { received <- ev })
	}()

	require.Eventually(t, func() bool { return src.mgr.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	sent := []mediakey.Type{mediakey.Play, mediakey.Next, mediakey.Unknown, mediakey.Stop}
	for _, k := range sent {
		src.mgr.Dispatch(k)
	}

	var lastSeq uint64
	for _, want := range sent {
		select {
		case ev := <-received:
			assert.Equal(t, want, ev.Key)
			assert.Equal(t, want.String(), ev.Label)
			assert.Greater(t, ev.Sequence, lastSeq)
			lastSeq = ev.Sequence
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}

	// The server drops the callback once the peer is gone
	assert.Eventually(t, func() bool { return src.mgr.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberDoesNotBlockDispatch(t *testing.T) {
	server, src, _ := startTestServer(t, 1)

	conn, err := (&Client{socketPath: server.SocketPath(), timeout: time.Second, log: logger.Discard()}).dial()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, writeMessage(conn, NewSubscribeMessage()))

	require.Eventually(t, func() bool { return src.mgr.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20000; i++ {
			src.mgr.Dispatch(mediakey.VolumeLower)
		}
	}()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch blocked on a subscriber that never reads")
	}
}

func TestStopDisconnectsSubscribers(t *testing.T) {
	server, src, client := startTestServer(t, 0)

	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(context.Background(), func(*KeyEvent) {})
	}()
	require.Eventually(t, func() bool { return src.mgr.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	server.Stop()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after server stop")
	}
	assert.Equal(t, 0, src.mgr.Len())
}

func TestUnknownRequestGetsError(t *testing.T) {
	server, _, _ := startTestServer(t, 0)

	conn, err := (&Client{socketPath: server.SocketPath(), timeout: time.Second, log: logger.Discard()}).dial()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, writeMessage(conn, &Message{Type: MessageTypeKeyEvent}))
	reply, err := readMessage(conn)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeError, reply.Type)
	assert.Contains(t, reply.Error, "KEY_EVENT")
}
