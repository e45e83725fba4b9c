// Package dnsclient resolves query names with github.com/miekg/dns over
// UDP, TCP or DNS-over-TLS.
package dnsclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
)

const (
	errNoServersProvided = "no DNS servers provided"
	errUnsupportedNet    = "unsupported network %q"
	errAllServersFailed  = "all %d servers failed"
	errRCode             = "server answered %s"
)

// Exchanger performs a single DNS exchange. *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Options configures a Client.
type Options struct {
	Servers []string
	// Net is "udp", "tcp" or "tcp-tls".
	Net       string
	Timeout   time.Duration
	TLSConfig *tls.Config
	// Exchanger replaces the miekg client, for tests.
	Exchanger Exchanger
}

// Client is a NameResolver backed by miekg/dns.
type Client struct {
	servers  []string
	net      string
	exchange Exchanger
}

// New returns a Client for opts.
func New(opts Options) (*Client, error) {
	if len(opts.Servers) == 0 {
		return nil, errors.New(errNoServersProvided)
	}
	switch opts.Net {
	case "":
		opts.Net = "udp"
	case "udp", "tcp", "tcp-tls":
	default:
		return nil, fmt.Errorf(errUnsupportedNet, opts.Net)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Exchanger == nil {
		tlsConfig := opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		opts.Exchanger = &dns.Client{
			Net:       opts.Net,
			Timeout:   opts.Timeout,
			TLSConfig: tlsConfig,
		}
	}
	return &Client{
		servers:  opts.Servers,
		net:      opts.Net,
		exchange: opts.Exchanger,
	}, nil
}

// LookupIPv4 sends an A query for name to each server in turn and returns
// the first A record of the first response received.
func (c *Client) LookupIPv4(ctx context.Context, name string) (netip.Addr, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(name), dns.TypeA)

	var lastErr error
	for _, server := range c.servers {
		resp, _, err := c.exchange.ExchangeContext(ctx, q, server)
		if err != nil {
			lastErr = fmt.Errorf("server %s: %w", server, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return firstA(resp)
	}
	return netip.Addr{}, fmt.Errorf(errAllServersFailed+": %w", len(c.servers), lastErr)
}

// String identifies the client in logs.
func (c *Client) String() string {
	return fmt.Sprintf("DNS(%s/%v)", c.net, c.servers)
}

func firstA(resp *dns.Msg) (netip.Addr, error) {
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return netip.Addr{}, lookup.ErrNotListed
	default:
		return netip.Addr{}, fmt.Errorf(errRCode, dns.RcodeToString[resp.Rcode])
	}
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			return addr, nil
		}
	}
	return netip.Addr{}, lookup.ErrNoAnswer
}

var _ lookup.NameResolver = (*Client)(nil)
