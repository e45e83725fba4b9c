// Package httpbl checks IPv4 addresses against Project Honey Pot's HTTP:BL
// DNS service and turns the answers into allow/deny decisions.
//
// Lookups fail open: when the service cannot be reached, or answers with
// something that is not a listing, the address is reported as not
// blacklisted and allowed.
package httpbl

import (
	"context"
	"net/netip"
	"time"

	"github.com/haukened/httpbl/internal/httpbl/domain"
	"github.com/haukened/httpbl/internal/httpbl/gateways/transport"
	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
	"github.com/haukened/httpbl/internal/httpbl/services/policy"
)

// Result is the decoded answer for one address.
type Result = domain.LookupResult

// Classification is one visitor category reported by HTTP:BL.
type Classification = domain.Classification

// Thresholds decide when a listing is denied.
type Thresholds = policy.Thresholds

const (
	NotBlacklisted = domain.NotBlacklisted
	SearchEngine   = domain.SearchEngine
	Suspicious     = domain.Suspicious
	Harvester      = domain.Harvester
	CommentSpammer = domain.CommentSpammer
)

// DefaultServiceDomain is the zone queried when Options.Domain is empty.
const DefaultServiceDomain = lookup.DefaultServiceDomain

// Sentinel errors a custom Resolver may return. Any error fails open; these
// only make debug logs more precise.
var (
	ErrNotListed = lookup.ErrNotListed
	ErrNoAnswer  = lookup.ErrNoAnswer
)

// DefaultThresholds returns the thresholds applied when Options.Thresholds is nil.
func DefaultThresholds() Thresholds {
	return policy.DefaultThresholds
}

// Resolver resolves a query name to its first IPv4 address.
type Resolver interface {
	LookupIPv4(ctx context.Context, name string) (netip.Addr, error)
}

// Options configures a Client.
type Options struct {
	// Key is the Project Honey Pot access key. Required.
	Key string

	// Domain overrides DefaultServiceDomain.
	Domain string

	// Timeout bounds a lookup whose context has no deadline. Defaults to 2s.
	Timeout time.Duration

	// Resolver replaces the transport selected below when set.
	Resolver Resolver

	// Transport is "system" (default), "udp", "tcp" or "tcp-tls".
	Transport string

	// Servers lists ip:port DNS servers for the non-system transports.
	Servers []string

	// Parallel races all Servers on the udp transport.
	Parallel bool

	// Thresholds defaults to DefaultThresholds.
	Thresholds *Thresholds
}

// Client performs lookups and policy decisions. It is safe for concurrent use.
type Client struct {
	checker   *lookup.Checker
	evaluator *policy.Evaluator
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	var resolver lookup.NameResolver = opts.Resolver
	if resolver == nil {
		t := transport.TransportType(opts.Transport)
		if t == "" {
			t = transport.TransportSystem
		}
		r, err := transport.NewResolver(t, transport.Options{
			Servers:  opts.Servers,
			Timeout:  opts.Timeout,
			Parallel: opts.Parallel,
		})
		if err != nil {
			return nil, err
		}
		resolver = r
	}

	checker, err := lookup.NewChecker(lookup.Options{
		Resolver: resolver,
		APIKey:   opts.Key,
		Domain:   opts.Domain,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	evaluator, err := policy.NewEvaluator(policy.Options{
		Checker:    checker,
		Thresholds: opts.Thresholds,
	})
	if err != nil {
		return nil, err
	}

	return &Client{checker: checker, evaluator: evaluator}, nil
}

// Check looks ip up once. It never fails; see the package documentation.
func (c *Client) Check(ctx context.Context, ip string) Result {
	return c.checker.Check(ctx, ip)
}

// Allow reports whether ip passes the current thresholds.
func (c *Client) Allow(ctx context.Context, ip string) bool {
	return c.evaluator.Allow(ctx, ip)
}

// Permits applies the current thresholds to a result from Check.
func (c *Client) Permits(r Result) bool {
	return c.evaluator.Permits(r)
}

// SetThresholds replaces the thresholds used by later Allow calls.
func (c *Client) SetThresholds(t Thresholds) {
	c.evaluator.SetThresholds(t)
}

// Thresholds returns the thresholds in effect.
func (c *Client) Thresholds() Thresholds {
	return c.evaluator.Thresholds()
}

// QueryName returns the DNS name queried for ip.
func (c *Client) QueryName(ip string) string {
	return c.checker.QueryName(ip)
}
