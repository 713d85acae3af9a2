// Package auxiliary provides built-in modules that do not deliver an exploit.
package auxiliary

import (
	"context"
	"fmt"
	"net"

	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/modules/payload"
	"github.com/vulntor/xploit/pkg/relay"
)

// Events published by TCPForward on the runtime bus.
const (
	EventRelayAccept        = "relay.accept"
	EventRelayConnectFailed = "relay.connect_failed"
	EventRelayError         = "relay.error"
	EventRelayDisposed      = "relay.disposed"
)

// Target indexes.
const (
	TargetDirect    = 0
	TargetInspected = 1
)

// RelayEvent is the data of the relay events.
type RelayEvent struct {
	Local  string
	Remote string
	Client string
	Err    error
}

// TCPForward starts a TCP relay job, optionally chained through a SOCKS
// proxy. The inspected target feeds traffic to an inspect payload.
type TCPForward struct {
	*module.Base

	LocalAddr    string
	RemoteAddr   string
	ProxyHost    string
	ProxyPort    int
	ProxyVersion int
	ProxyUser    string
	ProxyPass    string
}

// NewTCPForward is the registry factory.
func NewTCPForward() module.Entity {
	m := &TCPForward{}
	m.Base = module.NewModuleBase(
		module.Info{
			Name:        "tcp_forward",
			Path:        "auxiliary",
			Author:      "xploit",
			Description: "Forward a local TCP port to a remote endpoint, optionally through a SOCKS4/5 proxy",
			Version:     "1.0.0",
			References:  []string{"https://www.rfc-editor.org/rfc/rfc1928", "https://www.rfc-editor.org/rfc/rfc1929"},
		},
		module.NewSchema(
			module.String("LocalAddr", &m.LocalAddr, module.Required(), module.Describe("Listen endpoint (host:port)")),
			module.String("RemoteAddr", &m.RemoteAddr, module.Required(), module.Describe("Target endpoint (host:port)")),
			module.String("ProxyHost", &m.ProxyHost, module.Describe("SOCKS proxy host")),
			module.Int("ProxyPort", &m.ProxyPort, module.Describe("SOCKS proxy port")),
			module.Int("ProxyVersion", &m.ProxyVersion, module.Describe("SOCKS version: 4 or 5 (default 5)")),
			module.String("ProxyUser", &m.ProxyUser, module.Describe("SOCKS5 username")),
			module.String("ProxyPass", &m.ProxyPass, module.Describe("SOCKS5 password")),
		),
		module.WithTargets(
			module.Target{Name: "Direct relay", Description: "Forward bytes untouched"},
			module.Target{Name: "Inspected relay", Description: "Forward bytes through an inspect payload"},
		),
		module.WithDefaultTarget(TargetDirect),
		module.WithRequirements(module.PerTarget{
			ByTarget: map[int]module.PayloadRequirements{
				TargetInspected: module.KindRequirement{Kinds: []string{payload.KindInspect}, Required: true},
			},
		}),
	)
	return m
}

// proxyChain returns nil when no proxy host is configured.
func (m *TCPForward) proxyChain() *relay.ProxyChain {
	if m.ProxyHost == "" {
		return nil
	}
	version := m.ProxyVersion
	if version == 0 {
		version = 5
	}
	return &relay.ProxyChain{
		Host:     m.ProxyHost,
		Port:     m.ProxyPort,
		Version:  version,
		Username: m.ProxyUser,
		Password: m.ProxyPass,
	}
}

// Run builds the relay and starts it as a job. The job outlives ctx; it
// ends through the job registry.
func (m *TCPForward) Run(ctx context.Context, rt *module.Runtime) error {
	var opts []relay.Option
	if rt.Config != nil {
		opts = append(opts, relay.FromConfig(rt.Config.Relay)...)
	}
	if chain := m.proxyChain(); chain != nil {
		opts = append(opts, relay.WithProxy(chain))
	}

	var inspector payload.Inspector
	if p := m.Payload(); p != nil {
		insp, ok := p.(payload.Inspector)
		if !ok {
			return &module.ConfigurationError{Property: "payload", Err: fmt.Errorf("%w: %s cannot inspect traffic", module.ErrIncompatiblePayload, p.Core())}
		}
		send, receive, err := insp.OpenFilters()
		if err != nil {
			return err
		}
		inspector = insp
		opts = append(opts, relay.WithFilters(send, receive))
	}

	local, remote := m.LocalAddr, m.RemoteAddr
	bg := context.WithoutCancel(ctx)
	opts = append(opts, relay.WithObserver(relay.Observer{
		OnAccept: func(client net.Addr) {
			m.WriteInfo(fmt.Sprintf("Connection from %s", client))
			rt.Publish(bg, EventRelayAccept, RelayEvent{Local: local, Remote: remote, Client: client.String()})
		},
		OnConnectFailed: func(target string, err error) {
			m.WriteError(fmt.Sprintf("Connect to %s failed: %v", target, err))
			rt.Publish(bg, EventRelayConnectFailed, RelayEvent{Local: local, Remote: target, Err: err})
		},
		OnError: func(err error) {
			rt.Publish(bg, EventRelayError, RelayEvent{Local: local, Remote: remote, Err: err})
		},
		OnDisposed: func() {
			if inspector != nil {
				if err := inspector.CloseFilters(); err != nil {
					rt.Logger.Warn().Err(err).Msg("Closing inspect payload failed")
				}
			}
			rt.Publish(bg, EventRelayDisposed, RelayEvent{Local: local, Remote: remote})
		},
	}))

	r, err := relay.New(local, remote, opts...)
	if err != nil {
		if inspector != nil {
			_ = inspector.CloseFilters()
		}
		return &module.ConfigurationError{Err: fmt.Errorf("%w: %v", module.ErrInvalidValue, err)}
	}

	job, err := rt.Jobs.Run(bg, r)
	if err != nil {
		return err
	}
	m.WriteInfo(fmt.Sprintf("Job %d started: %s -> %s", job.Num(), r.Addr(), remote))
	return nil
}
