package upstream

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"
	"time"

	"github.com/haukened/httpbl/internal/httpbl/common/utils"
	"github.com/haukened/httpbl/internal/httpbl/domain"
	"github.com/haukened/httpbl/internal/httpbl/gateways/wire"
	"github.com/haukened/httpbl/internal/httpbl/services/lookup"
)

// Error message constants for consistent error handling
const (
	errNoServersProvided = "no upstream DNS servers provided"
	errCodecRequired     = "DNS codec is required"
	errServerFailed      = "server %s: %w"
	errAllServersFailed  = "all %d upstream servers failed"
	errQueryAborted      = "query aborted: %w"
	errFailedToConnect   = "failed to connect: %w"
	errEncodeFailed      = "encode failed: %w"
	errWriteFailed       = "write failed: %w"
	errReadFailed        = "read failed: %w"
	errInvalidQuestion   = "invalid question: %w"
	errRCode             = "upstream answered %s"
)

// Resolver answers A lookups by sending hand-encoded queries to upstream
// DNS servers over UDP.
type Resolver struct {
	servers  []string      // List of upstream DNS servers (e.g., "1.1.1.1:53")
	timeout  time.Duration // Default timeout for DNS queries
	codec    wire.Codec    // Codec for encoding/decoding DNS messages
	parallel bool          // Whether to query all servers at once
	dial     DialFunc      // Dial function to create network connections
	nextID   func() uint16 // Query ID source
}

// DialFunc defines a function type for establishing a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options defines configuration parameters for the upstream DNS resolver.
type Options struct {
	// required parameters
	Servers  []string
	Timeout  time.Duration
	Parallel bool
	// options to inject for testing purposes
	Codec  wire.Codec
	Dial   DialFunc
	NextID func() uint16
}

// NewResolver creates a new upstream resolver with the specified options.
// Returns an error if the server list is empty or the codec is not provided.
// Sets default timeout to 5 seconds and default dial function if not provided.
func NewResolver(opts Options) (*Resolver, error) {
	if len(opts.Servers) == 0 {
		return nil, errors.New(errNoServersProvided)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Codec == nil {
		return nil, errors.New(errCodecRequired)
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	if opts.NextID == nil {
		opts.NextID = func() uint16 { return uint16(rand.Uint32()) }
	}
	return &Resolver{
		servers:  opts.Servers,
		timeout:  opts.Timeout,
		codec:    opts.Codec,
		parallel: opts.Parallel,
		dial:     opts.Dial,
		nextID:   opts.NextID,
	}, nil
}

// ensureContextDeadline ensures the context has a deadline, adding the resolver's default timeout if needed.
// Returns the context (potentially with added timeout) and a cancel function if one was created.
func (r *Resolver) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, nil
}

// LookupIPv4 resolves name to its first A record.
// NXDOMAIN maps to lookup.ErrNotListed and an empty answer to lookup.ErrNoAnswer.
func (r *Resolver) LookupIPv4(ctx context.Context, name string) (netip.Addr, error) {
	// An empty name must reach question validation as "", not as the root.
	if utils.CanonicalDNSName(name) != "" {
		name = utils.FQDN(name)
	} else {
		name = ""
	}
	q, err := domain.NewQuestion(r.nextID(), name, domain.RRTypeA, domain.RRClassIN)
	if err != nil {
		return netip.Addr{}, fmt.Errorf(errInvalidQuestion, err)
	}

	resp, err := r.Resolve(ctx, q)
	if err != nil {
		return netip.Addr{}, err
	}

	switch resp.RCode {
	case domain.RCodeNoError:
	case domain.RCodeNXDomain:
		return netip.Addr{}, lookup.ErrNotListed
	default:
		return netip.Addr{}, fmt.Errorf(errRCode, resp.RCode)
	}

	addr, ok := resp.FirstIPv4(q.Name)
	if !ok {
		return netip.Addr{}, lookup.ErrNoAnswer
	}
	return addr, nil
}

// Resolve forwards a DNS query to upstream servers and returns the response.
// It tries either parallel or serial resolution depending on the Resolver's parallel flag.
// The method respects the deadline set in the context or applies the default timeout.
func (r *Resolver) Resolve(ctx context.Context, query domain.Question) (domain.DNSResponse, error) {
	ctx, cancel := r.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	if r.parallel {
		return r.resolveParallel(ctx, query)
	}
	return r.resolveSerial(ctx, query)
}

// resolveSerial attempts to query each server in order until one responds.
func (r *Resolver) resolveSerial(ctx context.Context, query domain.Question) (domain.DNSResponse, error) {
	var lastErr error
	for _, server := range r.servers {
		resp, err := r.queryServer(ctx, server, query)
		if err == nil {
			return resp, nil
		}
		lastErr = fmt.Errorf(errServerFailed, server, err)
		if ctx.Err() != nil {
			break
		}
	}
	return domain.DNSResponse{}, fmt.Errorf(errAllServersFailed+": %w", len(r.servers), lastErr)
}

// resolveParallel queries every server at once and returns the first response.
func (r *Resolver) resolveParallel(ctx context.Context, query domain.Question) (domain.DNSResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	responseChan := make(chan domain.DNSResponse, 1)
	errorChan := make(chan error, len(r.servers))

	for _, server := range r.servers {
		go func(srv string) {
			response, err := r.queryServer(ctx, srv, query)
			if err != nil {
				errorChan <- fmt.Errorf(errServerFailed, srv, err)
				return
			}
			select {
			case responseChan <- response:
			default:
				// Another goroutine already sent a response
			}
			// count the winner towards the total so the collector loop can finish
			errorChan <- nil
		}(server)
	}

	var errs []error
	for i := 0; i < len(r.servers); i++ {
		select {
		case response := <-responseChan:
			return response, nil
		case err := <-errorChan:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return domain.DNSResponse{}, fmt.Errorf(errQueryAborted, ctx.Err())
		}
	}

	select {
	case response := <-responseChan:
		return response, nil
	default:
	}
	return domain.DNSResponse{}, fmt.Errorf(errAllServersFailed+": %w", len(r.servers), errors.Join(errs...))
}

// queryServer performs a single exchange with server, honoring ctx.
func (r *Resolver) queryServer(ctx context.Context, server string, query domain.Question) (domain.DNSResponse, error) {
	conn, err := r.dial(ctx, "udp", server)
	if err != nil {
		return domain.DNSResponse{}, fmt.Errorf(errFailedToConnect, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	queryBytes, err := r.codec.EncodeQuery(query)
	if err != nil {
		return domain.DNSResponse{}, fmt.Errorf(errEncodeFailed, err)
	}

	type result struct {
		response domain.DNSResponse
		err      error
	}

	resultChan := make(chan result, 1)

	go func() {
		_, err := conn.Write(queryBytes)
		if err != nil {
			resultChan <- result{err: fmt.Errorf(errWriteFailed, err)}
			return
		}

		buffer := make([]byte, 512)
		n, err := conn.Read(buffer)
		if err != nil {
			resultChan <- result{err: fmt.Errorf(errReadFailed, err)}
			return
		}

		response, err := r.codec.DecodeResponse(buffer[:n], query.ID)
		resultChan <- result{response: response, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.response, res.err
	case <-ctx.Done():
		return domain.DNSResponse{}, ctx.Err()
	}
}

var _ lookup.NameResolver = (*Resolver)(nil)
