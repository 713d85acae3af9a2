package auxiliary

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vulntor/xploit/pkg/event"
	"github.com/vulntor/xploit/pkg/jobs"
	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/modules/payload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startEcho(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				_, _ = io.Copy(c, c)
			}()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		wg.Wait()
	})
	return ln.Addr().String()
}

func newRegistry(t *testing.T) *module.Registry {
	t.Helper()
	r := module.NewRegistry()
	require.NoError(t, r.Register(NewTCPForward))
	require.NoError(t, r.Register(payload.NewTrafficCapture))
	require.NoError(t, r.Register(payload.NewBannerMatch))
	return r
}

type eventLog struct {
	mu    sync.Mutex
	names []string
}

func (l *eventLog) handler(name string) event.Handler {
	return func(context.Context, any) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.names = append(l.names, name)
	}
}

func (l *eventLog) has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.names {
		if n == name {
			return true
		}
	}
	return false
}

func newRuntime(t *testing.T) (*module.Runtime, *eventLog) {
	t.Helper()
	bus := event.New(event.Synchronous())
	events := &eventLog{}
	for _, name := range []string{EventRelayAccept, EventRelayConnectFailed, EventRelayError, EventRelayDisposed} {
		bus.Subscribe(name, events.handler(name))
	}
	rt := &module.Runtime{Jobs: jobs.NewRegistry(), Events: bus}
	t.Cleanup(func() { rt.Jobs.KillAll() })
	return rt, events
}

func exchange(t *testing.T, addr string, msg []byte) []byte {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = c.Write(msg)
	require.NoError(t, err)
	got := make([]byte, len(msg))
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	return got
}

func relayAddr(t *testing.T, rt *module.Runtime) string {
	t.Helper()
	list := rt.Jobs.List()
	require.Len(t, list, 1)
	r, ok := list[0].Owner().(interface{ Addr() net.Addr })
	require.True(t, ok)
	return r.Addr().String()
}

func TestTCPForward_Direct(t *testing.T) {
	echo := startEcho(t)
	rt, events := newRuntime(t)

	e, err := newRegistry(t).NewModule("auxiliary/tcp_forward")
	require.NoError(t, err)
	m := e.(*TCPForward)

	require.ErrorIs(t, m.Check(nil), module.ErrMissingRequiredProperty)
	require.NoError(t, m.SetProperty("localaddr", "127.0.0.1:0"))
	require.NoError(t, m.SetProperty("remoteaddr", echo))
	require.NoError(t, m.Check(nil))

	require.NoError(t, m.Run(context.Background(), rt))
	assert.Equal(t, 1, rt.Jobs.Len())

	got := exchange(t, relayAddr(t, rt), []byte("ping"))
	assert.Equal(t, "ping", string(got))
	assert.True(t, events.has(EventRelayAccept))

	assert.Equal(t, 1, rt.Jobs.KillAll())
	assert.True(t, events.has(EventRelayDisposed))
}

func TestTCPForward_InspectedRequiresPayload(t *testing.T) {
	echo := startEcho(t)
	reg := newRegistry(t)

	e, err := reg.NewModule("auxiliary/tcp_forward")
	require.NoError(t, err)
	m := e.Core()
	require.NoError(t, m.SetProperty("LocalAddr", "127.0.0.1:0"))
	require.NoError(t, m.SetProperty("RemoteAddr", echo))

	require.NoError(t, m.SetProperty("target", TargetInspected))
	require.ErrorIs(t, m.Check(nil), module.ErrMissingPayload)

	require.NoError(t, m.SetProperty("payload", "payload/traffic_capture"))
	require.ErrorIs(t, m.Check(nil), module.ErrMissingRequiredProperty)

	require.NoError(t, m.SetProperty("target", TargetDirect))
	assert.Nil(t, m.Payload(), "direct target drops the payload")
	require.NoError(t, m.Check(nil))
}

func TestTCPForward_TrafficCapture(t *testing.T) {
	echo := startEcho(t)
	rt, _ := newRuntime(t)
	dir := t.TempDir()

	e, err := newRegistry(t).NewModule("auxiliary/tcp_forward")
	require.NoError(t, err)
	m := e.Core()
	require.NoError(t, m.SetProperty("LocalAddr", "127.0.0.1:0"))
	require.NoError(t, m.SetProperty("RemoteAddr", echo))
	require.NoError(t, m.SetProperty("target", TargetInspected))
	require.NoError(t, m.SetProperty("payload", "payload/traffic_capture"))
	require.NoError(t, m.SetProperty("OutputDir", dir))
	require.NoError(t, m.Check(nil))

	require.NoError(t, e.(module.Runner).Run(context.Background(), rt))
	exchange(t, relayAddr(t, rt), []byte("captured bytes"))
	rt.Jobs.KillAll()

	files, err := filepath.Glob(filepath.Join(dir, "*-receive.bin"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "captured bytes", string(data))
}

func TestTCPForward_ConnectFailedEvent(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := ln.Addr().String()
	ln.Close()

	rt, events := newRuntime(t)
	e, err := newRegistry(t).NewModule("auxiliary/tcp_forward")
	require.NoError(t, err)
	m := e.(*TCPForward)
	require.NoError(t, m.SetProperty("LocalAddr", "127.0.0.1:0"))
	require.NoError(t, m.SetProperty("RemoteAddr", dead))
	require.NoError(t, m.Run(context.Background(), rt))

	c, err := net.Dial("tcp", relayAddr(t, rt))
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool { return events.has(EventRelayConnectFailed) }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rt.Jobs.Len(), "relay survives a failed pair")
}

func TestTCPForward_ListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	rt, _ := newRuntime(t)
	e, err := newRegistry(t).NewModule("auxiliary/tcp_forward")
	require.NoError(t, err)
	m := e.(*TCPForward)
	require.NoError(t, m.SetProperty("LocalAddr", busy.Addr().String()))
	require.NoError(t, m.SetProperty("RemoteAddr", "127.0.0.1:9"))

	require.Error(t, m.Run(context.Background(), rt))
	assert.Equal(t, 0, rt.Jobs.Len())
}

func TestTCPForward_ProxyChain(t *testing.T) {
	m := NewTCPForward().(*TCPForward)
	assert.Nil(t, m.proxyChain())

	require.NoError(t, m.SetProperty("ProxyHost", "127.0.0.1"))
	require.NoError(t, m.SetProperty("ProxyPort", "1080"))
	chain := m.proxyChain()
	require.NotNil(t, chain)
	assert.Equal(t, 5, chain.Version)
	assert.Equal(t, "127.0.0.1:1080", chain.Addr())

	require.NoError(t, m.SetProperty("ProxyVersion", 4))
	assert.Equal(t, 4, m.proxyChain().Version)
}
