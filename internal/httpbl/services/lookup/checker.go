// Package lookup turns an IPv4 address into an HTTP:BL query, resolves it and
// decodes the answer. Every failure along the way yields a not-blacklisted
// result; callers never see an error from Check.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haukened/httpbl/internal/httpbl/common/log"
	"github.com/haukened/httpbl/internal/httpbl/common/utils"
	"github.com/haukened/httpbl/internal/httpbl/domain"
)

const (
	// DefaultServiceDomain is the HTTP:BL query zone.
	DefaultServiceDomain = "dnsbl.httpbl.org"
	// DefaultTimeout bounds a single resolution when the caller's context has no deadline.
	DefaultTimeout = 2 * time.Second
)

const (
	errResolverRequired = "name resolver is required"
	errKeyRequired      = "access key is required"
)

// Options configures a Checker.
type Options struct {
	Resolver NameResolver
	APIKey   string
	Domain   string
	Timeout  time.Duration
	Logger   log.Logger
}

// Checker is the lookup encoder/decoder. It is safe for concurrent use.
type Checker struct {
	resolver NameResolver
	key      string
	domain   string
	timeout  time.Duration
	logger   log.Logger
}

// NewChecker validates opts and applies defaults for the domain, timeout and logger.
func NewChecker(opts Options) (*Checker, error) {
	if opts.Resolver == nil {
		return nil, errors.New(errResolverRequired)
	}
	if opts.APIKey == "" {
		return nil, errors.New(errKeyRequired)
	}
	if opts.Domain == "" {
		opts.Domain = DefaultServiceDomain
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Checker{
		resolver: opts.Resolver,
		key:      opts.APIKey,
		domain:   utils.CanonicalDNSName(opts.Domain),
		timeout:  opts.Timeout,
		logger:   opts.Logger.With(map[string]any{"component": "lookup"}),
	}, nil
}

// QueryName builds "{key}.{reversed ip}.{domain}".
func QueryName(key, ip, domain string) string {
	return key + "." + utils.ReverseIPv4(ip) + "." + domain
}

// QueryName returns the name the checker resolves for ip.
func (c *Checker) QueryName(ip string) string {
	return QueryName(c.key, ip, c.domain)
}

type status uint8

const (
	statusUnavailable status = iota
	statusClassified
)

// outcome keeps the reason a lookup produced no listing. It never leaves
// the package: Check folds unavailable outcomes into a not-blacklisted result.
type outcome struct {
	status status
	reason error
	reply  domain.Reply
}

func unavailable(reason error) outcome {
	return outcome{status: statusUnavailable, reason: reason}
}

func (c *Checker) lookup(ctx context.Context, ip string) outcome {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	addr, err := c.resolver.LookupIPv4(ctx, c.QueryName(ip))
	if err != nil {
		return unavailable(fmt.Errorf("resolve: %w", err))
	}

	reply, err := domain.ParseReply(addr)
	if err != nil {
		return unavailable(err)
	}
	return outcome{status: statusClassified, reply: reply}
}

// Check looks ip up once and decodes the answer.
func (c *Checker) Check(ctx context.Context, ip string) domain.LookupResult {
	o := c.lookup(ctx, ip)
	if o.status == statusUnavailable {
		c.logger.Debug(map[string]any{
			"ip":     ip,
			"reason": o.reason.Error(),
		}, "No listing")
		return domain.NewNotBlacklisted(ip)
	}

	res := domain.NewLookupResult(ip, o.reply)
	c.logger.Debug(map[string]any{
		"ip":              ip,
		"threat":          res.ThreatScore,
		"type":            res.TypeBitmask,
		"classifications": res.Labels(),
	}, "Listing decoded")
	return res
}
