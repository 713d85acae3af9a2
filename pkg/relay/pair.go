package relay

import (
	"context"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Direction names one half of a pair.
type Direction int

const (
	// Send is client to remote.
	Send Direction = iota
	// Receive is remote to client.
	Receive
)

func (d Direction) String() string {
	if d == Receive {
		return "receive"
	}
	return "send"
}

// Filter observes the bytes flowing in one direction. It must not retain
// or modify data.
type Filter func(data []byte)

// pair is the child relay serving one accepted connection: it connects to
// the remote endpoint and copies bytes both ways until either side fails.
type pair struct {
	parent  *Relay
	inbound net.Conn

	mu       sync.Mutex
	outbound net.Conn
	closed   bool
	cancel   context.CancelFunc
}

// close tears down both sockets. Safe to call from any goroutine.
func (p *pair) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	p.inbound.Close()
	if p.outbound != nil {
		p.outbound.Close()
	}
}

func (p *pair) run(ctx context.Context) {
	r := p.parent
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return
	}
	p.cancel = cancel
	p.mu.Unlock()
	defer p.close()

	out, err := r.dial(ctx)
	if err != nil {
		op := "dial"
		if r.proxy != nil {
			op = "handshake"
		}
		r.stats.failed.Add(1)
		r.emitConnectFailed(r.remote, &ConnectionError{Op: op, Addr: r.remote, Err: err})
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		out.Close()
		return
	}
	p.outbound = out
	p.mu.Unlock()

	r.logger.Debug().
		Str("client", p.inbound.RemoteAddr().String()).
		Str("remote", r.remote).
		Msg("Pair established")

	var g errgroup.Group
	g.Go(func() error {
		defer p.close()
		return r.pipe(out, p.inbound, Send)
	})
	g.Go(func() error {
		defer p.close()
		return r.pipe(p.inbound, out, Receive)
	})
	if err := g.Wait(); err != nil {
		r.logger.Debug().Err(err).Str("remote", r.remote).Msg("Pair closed")
		r.emitError(err)
	}
}

func (r *Relay) dial(ctx context.Context) (net.Conn, error) {
	if r.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.dialTimeout)
		defer cancel()
	}
	return r.dialer.DialContext(ctx, "tcp", r.remote)
}

// pipe copies src to dst with a fixed buffer. The next read is issued only
// after the previous chunk was fully written.
func (r *Relay) pipe(dst, src net.Conn, dir Direction) error {
	bufp := r.bufPool.Get().(*[]byte)
	defer r.bufPool.Put(bufp)
	buf := *bufp

	filter := r.sendFilter
	counter := &r.stats.bytesSent
	if dir == Receive {
		filter = r.receiveFilter
		counter = &r.stats.bytesReceived
	}

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if filter != nil {
				filter(buf[:n])
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				if isHarmless(werr) {
					return nil
				}
				return &RelayError{Direction: dir, Op: "write", Err: werr}
			}
			counter.Add(int64(n))
		}
		if rerr != nil {
			if isHarmless(rerr) {
				return nil
			}
			return &RelayError{Direction: dir, Op: "read", Err: rerr}
		}
	}
}
