// Package transport selects the gateway that carries reputation queries.
package transport

import (
	"fmt"
	"time"

	"github.com/haukened/httpbl/internal/httpbl/common/log"
	"github.com/haukened/httpbl/internal/httpbl/gateways/dnsclient"
	"github.com/haukened/httpbl/internal/httpbl/gateways/system"
	"github.com/haukened/httpbl/internal/httpbl/gateways/upstream"
	"github.com/haukened/httpbl/internal/httpbl/gateways/wire"
	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
)

// TransportType names a resolution path.
type TransportType string

const (
	// TransportSystem uses the platform resolver.
	TransportSystem TransportType = "system"

	// TransportUDP sends queries with the built-in RFC 1035 codec over UDP.
	TransportUDP TransportType = "udp"

	// TransportTCP sends queries over TCP with miekg/dns.
	TransportTCP TransportType = "tcp"

	// TransportDoT sends queries over TLS (RFC 7858) with miekg/dns.
	TransportDoT TransportType = "tcp-tls"
)

// Options carries the settings shared by every transport. Servers, Timeout
// and Parallel are ignored by TransportSystem.
type Options struct {
	Servers  []string
	Timeout  time.Duration
	Parallel bool
	Logger   log.Logger
}

// NewResolver creates the NameResolver for transportType.
func NewResolver(transportType TransportType, opts Options) (lookup.NameResolver, error) {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	switch transportType {
	case TransportSystem:
		return system.NewResolver(nil), nil

	case TransportUDP:
		return upstream.NewResolver(upstream.Options{
			Servers:  opts.Servers,
			Timeout:  opts.Timeout,
			Parallel: opts.Parallel,
			Codec:    wire.NewUDPCodec(opts.Logger),
		})

	case TransportTCP, TransportDoT:
		return dnsclient.New(dnsclient.Options{
			Servers: opts.Servers,
			Net:     string(transportType),
			Timeout: opts.Timeout,
		})

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
}

// SupportedTransports returns the transport types NewResolver accepts.
func SupportedTransports() []TransportType {
	return []TransportType{
		TransportSystem,
		TransportUDP,
		TransportTCP,
		TransportDoT,
	}
}

// IsTransportSupported checks if a given transport type is supported.
func IsTransportSupported(transportType TransportType) bool {
	for _, t := range SupportedTransports() {
		if t == transportType {
			return true
		}
	}
	return false
}
