// Package relay implements a TCP forwarder with optional SOCKS4/SOCKS5
// proxy chaining. A Relay listens on a local endpoint and, for each
// accepted connection, starts a child pair that connects to the remote
// endpoint and copies bytes in both directions.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/xploit/pkg/config"
)

const (
	// DefaultBufferSize is the fixed per-direction copy buffer.
	DefaultBufferSize = 8 * 1024

	// DefaultDialTimeout bounds outbound connects and proxy handshakes.
	DefaultDialTimeout = 10 * time.Second

	maxAcceptDelay = time.Second
)

// Option configures a Relay.
type Option func(*Relay)

// WithProxy tunnels outbound connections through chain.
func WithProxy(chain *ProxyChain) Option {
	return func(r *Relay) { r.proxy = chain }
}

// WithDialTimeout overrides DefaultDialTimeout. Zero disables the timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(r *Relay) { r.dialTimeout = d }
}

// WithFilters installs inspection filters. Either may be nil.
func WithFilters(send, receive Filter) Option {
	return func(r *Relay) {
		r.sendFilter = send
		r.receiveFilter = receive
	}
}

// WithObserver registers o before the relay starts.
func WithObserver(o Observer) Option {
	return func(r *Relay) { r.observers = append(r.observers, o) }
}

// WithLogger overrides the relay logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// FromConfig maps the relay section of the configuration to options. The
// proxy is only applied when a host is configured.
func FromConfig(cfg config.RelayConfig) []Option {
	opts := []Option{WithDialTimeout(cfg.DialTimeout)}
	if cfg.Proxy.Host != "" {
		opts = append(opts, WithProxy(&ProxyChain{
			Host:     cfg.Proxy.Host,
			Port:     cfg.Proxy.Port,
			Version:  cfg.Proxy.Version,
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		}))
	}
	return opts
}

// Relay is a listening TCP forwarder. It implements jobs.Jobable.
type Relay struct {
	local  string
	remote string

	proxy         *ProxyChain
	dialTimeout   time.Duration
	sendFilter    Filter
	receiveFilter Filter
	logger        zerolog.Logger

	dialer  dialer
	bufPool sync.Pool

	mu        sync.Mutex
	listener  net.Listener
	children  map[*pair]struct{}
	observers []Observer
	started   bool

	disposed atomic.Bool
	done     chan struct{}
	teardown chan struct{}
	wg       sync.WaitGroup
	stats    stats
}

// New returns a relay forwarding connections accepted on local to remote.
func New(local, remote string, opts ...Option) (*Relay, error) {
	r := &Relay{
		local:       local,
		remote:      remote,
		dialTimeout: DefaultDialTimeout,
		logger:      log.Logger.With().Str("component", "relay").Logger(),
		children:    make(map[*pair]struct{}),
		done:        make(chan struct{}),
		teardown:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, _, err := net.SplitHostPort(local); err != nil {
		return nil, fmt.Errorf("invalid local endpoint %q: %w", local, err)
	}
	if _, _, err := net.SplitHostPort(remote); err != nil {
		return nil, fmt.Errorf("invalid remote endpoint %q: %w", remote, err)
	}
	if r.proxy != nil {
		if err := r.proxy.Validate(); err != nil {
			return nil, err
		}
	}

	d, err := newDialer(r.proxy, r.dialTimeout)
	if err != nil {
		return nil, err
	}
	r.dialer = d

	r.bufPool.New = func() any {
		b := make([]byte, DefaultBufferSize)
		return &b
	}
	return r, nil
}

// JobName implements jobs.Named.
func (r *Relay) JobName() string {
	if r.proxy != nil {
		return fmt.Sprintf("relay %s -> %s via %s", r.local, r.remote, r.proxy)
	}
	return fmt.Sprintf("relay %s -> %s", r.local, r.remote)
}

// Start binds the local endpoint and launches the accept loop. It returns
// once the listener is bound. Cancelling ctx disposes the relay.
func (r *Relay) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed.Load() {
		return ErrDisposed
	}
	if r.started {
		return ErrAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", r.local)
	if err != nil {
		return &ConnectionError{Op: "listen", Addr: r.local, Err: err}
	}
	r.listener = ln
	r.started = true

	r.wg.Add(1)
	go r.acceptLoop(ctx, ln)
	go func() {
		select {
		case <-ctx.Done():
			_ = r.Dispose()
		case <-r.done:
		}
	}()

	r.logger.Info().
		Str("local", ln.Addr().String()).
		Str("remote", r.remote).
		Msg("Relay listening")
	return nil
}

func (r *Relay) acceptLoop(ctx context.Context, ln net.Listener) {
	defer r.wg.Done()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if r.disposed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			r.emitError(&ConnectionError{Op: "accept", Addr: r.local, Err: err})
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			select {
			case <-time.After(delay):
			case <-r.done:
				return
			}
			continue
		}
		delay = 0

		p := &pair{parent: r, inbound: conn}
		r.mu.Lock()
		if r.disposed.Load() {
			r.mu.Unlock()
			conn.Close()
			return
		}
		r.children[p] = struct{}{}
		r.wg.Add(1)
		r.mu.Unlock()

		r.stats.accepted.Add(1)
		r.emitAccept(conn.RemoteAddr())

		go func() {
			defer r.wg.Done()
			defer r.removeChild(p)
			p.run(ctx)
		}()
	}
}

func (r *Relay) removeChild(p *pair) {
	r.mu.Lock()
	delete(r.children, p)
	r.mu.Unlock()
}

// Dispose closes the listener, then every live pair, and waits for their
// goroutines to exit. Only the first call tears down; later calls block
// until it has finished. Observers must not call Dispose synchronously
// from a callback.
func (r *Relay) Dispose() error {
	if !r.disposed.CompareAndSwap(false, true) {
		<-r.teardown
		return nil
	}
	defer close(r.teardown)
	close(r.done)

	r.mu.Lock()
	ln := r.listener
	children := make([]*pair, 0, len(r.children))
	for p := range r.children {
		children = append(children, p)
	}
	r.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = &ConnectionError{Op: "close", Addr: r.local, Err: cerr}
		}
	}
	for _, p := range children {
		p.close()
	}
	r.wg.Wait()

	r.logger.Info().
		Str("local", r.local).
		Int("pairs", len(children)).
		Msg("Relay disposed")
	r.emitDisposed()
	return err
}

// IsDisposed implements jobs.Jobable.
func (r *Relay) IsDisposed() bool { return r.disposed.Load() }

// Addr returns the bound listen address, or nil before Start.
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Local returns the configured listen endpoint.
func (r *Relay) Local() string { return r.local }

// Remote returns the configured target endpoint.
func (r *Relay) Remote() string { return r.remote }

// Proxy returns the proxy chain, or nil.
func (r *Relay) Proxy() *ProxyChain { return r.proxy }

// Children returns the number of live pairs.
func (r *Relay) Children() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

type stats struct {
	accepted      atomic.Int64
	failed        atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Accepted      int64
	Failed        int64
	Active        int
	BytesSent     int64
	BytesReceived int64
}

// Stats returns the current counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Accepted:      r.stats.accepted.Load(),
		Failed:        r.stats.failed.Load(),
		Active:        r.Children(),
		BytesSent:     r.stats.bytesSent.Load(),
		BytesReceived: r.stats.bytesReceived.Load(),
	}
}
