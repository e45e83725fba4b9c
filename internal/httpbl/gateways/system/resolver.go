// Package system resolves query names through the platform resolver, the
// same path gethostbyname-style lookups take.
package system

import (
	"context"
	"errors"
	"net"
	"net/netip"

	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
)

// HostResolver is the subset of *net.Resolver used here.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolver adapts a HostResolver to lookup.NameResolver.
type Resolver struct {
	host HostResolver
}

// NewResolver wraps r; a nil r selects net.DefaultResolver.
func NewResolver(r HostResolver) *Resolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Resolver{host: r}
}

// LookupIPv4 returns the first IPv4 address for name.
func (r *Resolver) LookupIPv4(ctx context.Context, name string) (netip.Addr, error) {
	addrs, err := r.host.LookupNetIP(ctx, "ip4", name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return netip.Addr{}, lookup.ErrNotListed
		}
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		if a = a.Unmap(); a.Is4() {
			return a, nil
		}
	}
	return netip.Addr{}, lookup.ErrNoAnswer
}

var _ lookup.NameResolver = (*Resolver)(nil)
