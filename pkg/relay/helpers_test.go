package relay

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// server is a loopback TCP server whose connections are all closed on
// cleanup.
type server struct {
	ln    net.Listener
	wg    sync.WaitGroup
	mu    sync.Mutex
	conns []net.Conn
}

func serve(t *testing.T, handle func(net.Conn)) *server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &server{ln: ln}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns = append(s.conns, c)
			s.mu.Unlock()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer c.Close()
				handle(c)
			}()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		s.mu.Lock()
		for _, c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return s
}

func (s *server) addr() string { return s.ln.Addr().String() }

func startEcho(t *testing.T) *server {
	return serve(t, func(c net.Conn) { _, _ = io.Copy(c, c) })
}

// startRelay builds and starts a relay on an ephemeral port, disposing it
// on cleanup.
func startRelay(t *testing.T, remote string, opts ...Option) *Relay {
	t.Helper()
	r, err := New("127.0.0.1:0", remote, opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Dispose() })
	return r
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// roundTrip writes payload through conn and reads back the same amount.
func roundTrip(t *testing.T, conn net.Conn, payload []byte) []byte {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Write(payload)
		errCh <- err
	}()

	got := make([]byte, len(payload))
	_, err := io.ReadFull(conn, got)
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	return got
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond)
}

// recorder collects observer notifications.
type recorder struct {
	mu            sync.Mutex
	accepted      []string
	connectFailed []string
	errs          []error
	disposed      int
}

func (rec *recorder) observer() Observer {
	return Observer{
		OnAccept: func(a net.Addr) {
			rec.mu.Lock()
			rec.accepted = append(rec.accepted, a.String())
			rec.mu.Unlock()
		},
		OnConnectFailed: func(remote string, _ error) {
			rec.mu.Lock()
			rec.connectFailed = append(rec.connectFailed, remote)
			rec.mu.Unlock()
		},
		OnError: func(err error) {
			rec.mu.Lock()
			rec.errs = append(rec.errs, err)
			rec.mu.Unlock()
		},
		OnDisposed: func() {
			rec.mu.Lock()
			rec.disposed++
			rec.mu.Unlock()
		},
	}
}

func (rec *recorder) snapshot() (accepted, failed []string, errs []error, disposed int) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.accepted...),
		append([]string(nil), rec.connectFailed...),
		append([]error(nil), rec.errs...),
		rec.disposed
}
