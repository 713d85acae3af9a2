package relay

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/proxy"
)

var validate = validator.New()

// ProxyChain describes the SOCKS proxy outbound connections are tunneled
// through. Version 4 ignores the credentials; version 5 offers them only
// when the proxy asks for authentication.
type ProxyChain struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	Version  int    `validate:"oneof=4 5"`
	Username string `validate:"max=255"`
	Password string `validate:"max=255"`
}

// Validate checks the descriptor.
func (p *ProxyChain) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid proxy chain: %w", err)
	}
	return nil
}

// Addr returns host:port of the proxy.
func (p *ProxyChain) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func (p *ProxyChain) String() string {
	return fmt.Sprintf("socks%d://%s", p.Version, p.Addr())
}

// dialer opens outbound connections for child pairs.
type dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// newDialer returns the dialer matching chain; nil chain dials directly.
func newDialer(chain *ProxyChain, timeout time.Duration) (dialer, error) {
	direct := &net.Dialer{Timeout: timeout}
	if chain == nil {
		return direct, nil
	}

	switch chain.Version {
	case 4:
		return &socks4Dialer{proxyAddr: chain.Addr(), forward: direct}, nil
	case 5:
		var auth *proxy.Auth
		if chain.Username != "" || chain.Password != "" {
			auth = &proxy.Auth{User: chain.Username, Password: chain.Password}
		}
		d, err := proxy.SOCKS5("tcp", chain.Addr(), auth, direct)
		if err != nil {
			return nil, err
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer does not support contexts")
		}
		return cd, nil
	}
	return nil, fmt.Errorf("unsupported socks version %d", chain.Version)
}

const (
	socks4Version    = 0x04
	socks4Connect    = 0x01
	socks4Granted    = 0x5a
	socks4ReplyBytes = 8
)

// socks4Dialer issues a single SOCKS4 CONNECT request. Hostnames are
// resolved locally since SOCKS4 carries only IPv4 addresses.
type socks4Dialer struct {
	proxyAddr string
	forward   *net.Dialer
}

func (d *socks4Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q", portStr)
	}
	ip, err := resolveIPv4(ctx, host)
	if err != nil {
		return nil, err
	}

	conn, err := d.forward.DialContext(ctx, network, d.proxyAddr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock the handshake when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })

	err = socks4Handshake(conn, ip, uint16(port))
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

func socks4Handshake(rw io.ReadWriter, ip net.IP, port uint16) error {
	req := make([]byte, 0, 9)
	req = append(req, socks4Version, socks4Connect)
	req = binary.BigEndian.AppendUint16(req, port)
	req = append(req, ip.To4()...)
	req = append(req, 0) // empty user id

	if _, err := rw.Write(req); err != nil {
		return err
	}

	var reply [socks4ReplyBytes]byte
	if _, err := io.ReadFull(rw, reply[:]); err != nil {
		return err
	}
	if reply[1] != socks4Granted {
		return fmt.Errorf("%w: socks4 status 0x%02x", ErrSocksRejected, reply[1])
	}
	return nil
}

func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("socks4 requires an IPv4 address, got %s", host)
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IPv4 address for %s", host)
	}
	return ips[0].To4(), nil
}
