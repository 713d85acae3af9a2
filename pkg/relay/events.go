package relay

import "net"

// Observer receives connection lifecycle notifications. Nil fields are
// skipped. Callbacks run on relay goroutines.
type Observer struct {
	// OnAccept fires when the listener accepts a connection.
	OnAccept func(client net.Addr)
	// OnConnectFailed fires when a pair cannot reach remote.
	OnConnectFailed func(remote string, err error)
	// OnError fires for accept, connect and mid-stream failures.
	OnError func(err error)
	// OnDisposed fires at most once, after teardown completed.
	OnDisposed func()
}

// Observe registers o.
func (r *Relay) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Relay) snapshotObservers() []Observer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Observer, len(r.observers))
	copy(out, r.observers)
	return out
}

func (r *Relay) emitAccept(addr net.Addr) {
	for _, o := range r.snapshotObservers() {
		if o.OnAccept != nil {
			o.OnAccept(addr)
		}
	}
}

func (r *Relay) emitConnectFailed(remote string, err error) {
	r.logger.Debug().Err(err).Str("remote", remote).Msg("Outbound connect failed")
	for _, o := range r.snapshotObservers() {
		if o.OnConnectFailed != nil {
			o.OnConnectFailed(remote, err)
		}
		if o.OnError != nil {
			o.OnError(err)
		}
	}
}

func (r *Relay) emitError(err error) {
	for _, o := range r.snapshotObservers() {
		if o.OnError != nil {
			o.OnError(err)
		}
	}
}

func (r *Relay) emitDisposed() {
	for _, o := range r.snapshotObservers() {
		if o.OnDisposed != nil {
			o.OnDisposed()
		}
	}
}
