package lookup

import (
	"context"
	"errors"
	"net/netip"
)

var (
	// ErrNotListed is returned by resolvers when the query name does not exist.
	ErrNotListed = errors.New("name not listed")
	// ErrNoAnswer is returned by resolvers when the response has no A record.
	ErrNoAnswer = errors.New("no A record in answer")
)

// NameResolver performs the forward resolution of a synthesized query name.
// Implementations return the first IPv4 address of the answer.
type NameResolver interface {
	LookupIPv4(ctx context.Context, name string) (netip.Addr, error)
}

// NameResolverFunc adapts a function to the NameResolver interface.
type NameResolverFunc func(ctx context.Context, name string) (netip.Addr, error)

// LookupIPv4 calls f(ctx, name).
func (f NameResolverFunc) LookupIPv4(ctx context.Context, name string) (netip.Addr, error) {
	return f(ctx, name)
}
