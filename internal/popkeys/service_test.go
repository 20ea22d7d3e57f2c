package popkeys

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/popkeys/internal/bridge"
	"github.com/bnema/popkeys/internal/config"
	"github.com/bnema/popkeys/internal/input"
	"github.com/bnema/popkeys/internal/logger"
	"github.com/bnema/popkeys/internal/mediakey"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	sink    input.Sink
	running bool
	stops   int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) OnMediaKey(sink input.Sink) {
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
}

func (f *fakeBackend) Start(context.Context) error {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Stop() error {
	f.mu.Lock()
	f.running = false
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) Grabbed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeBackend) press(k mediakey.Type) {
	f.mu.Lock()
	s := f.sink
	f.mu.Unlock()
	if s != nil {
		s(k)
	}
}

// joiningBackend waits in Stop for in-flight key deliveries, like the real
// backends joining their loop goroutine
type joiningBackend struct {
	fakeBackend
	inflight sync.WaitGroup
	stopping chan struct{}
}

func (f *joiningBackend) Stop() error {
	close(f.stopping)
	f.inflight.Wait()
	return f.fakeBackend.Stop()
}

func newTestService(t *testing.T, indicator string) (*Service, *fakeBackend) {
	t.Helper()
	fake := &fakeBackend{}
	return newServiceWithBackend(t, indicator, fake), fake
}

func newServiceWithBackend(t *testing.T, indicator string, backend input.Backend) *Service {
	t.Helper()
	cfg := config.DefaultConfig
	svc, err := New(&cfg, logger.Discard(), WithBridgeOptions(
		bridge.WithIndicator(indicator),
		bridge.WithBackendFactory(func(bridge.Kind, config.KeysConfig, *log.Logger) input.Backend { return backend }),
	))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestServiceDispatchesToCallbacks(t *testing.T) {
	svc, fake := newTestService(t, "ubuntu:GNOME")

	var first, second []mediakey.Type
	svc.RegisterCallback(func(k mediakey.Type) { first = append(first, k) })
	svc.RegisterCallback(func(k mediakey.Type) { second = append(second, k) })

	fake.press(mediakey.Play)
	fake.press(mediakey.Pause)

	assert.Equal(t, []mediakey.Type{mediakey.Play, mediakey.Pause}, first)
	assert.Equal(t, first, second)
}

func TestServiceKeyCodeCallback(t *testing.T) {
	svc, fake := newTestService(t, "KDE")

	var codes []int
	svc.RegisterKeyCodeCallback(func(c int) { codes = append(codes, c) })

	for _, k := range mediakey.All() {
		fake.press(k)
	}
	fake.press(mediakey.Unknown)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 0}, codes)
}

func TestServiceNilKeyCodeCallback(t *testing.T) {
	svc, _ := newTestService(t, "KDE")

	assert.Equal(t, 0, int(svc.RegisterKeyCodeCallback(nil)))
	assert.Equal(t, 0, svc.Status().Subscribers)
}

func TestServiceUnsubscribe(t *testing.T) {
	svc, fake := newTestService(t, "KDE")

	var n int
	id := svc.RegisterCallback(func(mediakey.Type) { n++ })
	fake.press(mediakey.Next)

	require.True(t, svc.Unsubscribe(id))
	fake.press(mediakey.Next)

	assert.Equal(t, 1, n)
	assert.False(t, svc.Unsubscribe(id))
}

func TestServiceStatus(t *testing.T) {
	svc, _ := newTestService(t, "ubuntu:GNOME")
	svc.RegisterCallback(func(mediakey.Type) {})

	st := svc.Status()
	assert.Equal(t, config.DefaultAppName, st.AppName)
	assert.Equal(t, "fake", st.Backend)
	assert.Equal(t, bridge.KindGnomeLike, st.Kind)
	assert.True(t, st.Grabbed)
	assert.Equal(t, 1, st.Subscribers)
}

func TestServiceCloseStopsBackendFirst(t *testing.T) {
	svc, fake := newTestService(t, "KDE")

	var n int
	svc.RegisterCallback(func(mediakey.Type) { n++ })

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	assert.Equal(t, 1, fake.stops)
	fake.press(mediakey.Play)
	assert.Equal(t, 0, n)
	assert.False(t, svc.Status().Grabbed)
}

func TestServiceCloseWithoutKeyPress(t *testing.T) {
	svc, _ := newTestService(t, "")
	assert.NoError(t, svc.Close())
}

func TestServiceCloseWhileCallbackReadsStatus(t *testing.T) {
	backend := &joiningBackend{stopping: make(chan struct{})}
	svc := newServiceWithBackend(t, "KDE", backend)

	entered := make(chan struct{})
	statuses := make(chan Status, 1)
	svc.RegisterCallback(func(mediakey.Type) {
		close(entered)
		<-backend.stopping
		statuses <- svc.Status()
	})

	backend.inflight.Add(1)
	go func() {
		defer backend.inflight.Done()
		backend.press(mediakey.Play)
	}()
	<-entered

	closed := make(chan error, 1)
	go func() { closed <- svc.Close() }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a callback was reading the status")
	}

	st := <-statuses
	assert.False(t, st.Grabbed)
	assert.Equal(t, 1, backend.stops)
}
