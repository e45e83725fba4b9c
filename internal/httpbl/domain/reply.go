package domain

import (
	"errors"
	"fmt"
	"net/netip"
)

// ListedPrefix is the first octet every listing answer carries.
const ListedPrefix = 127

var (
	ErrNotIPv4    = errors.New("answer is not an IPv4 address")
	ErrNotListing = errors.New("answer is not a listing")
)

// Reply is the payload of a listing answer: octets two to four of the
// returned address.
type Reply struct {
	Activity uint8 // days since last activity, or unused for search engines
	Score    uint8 // threat score, or search engine code
	Type     uint8 // visitor type bitmask
}

// ParseReply decodes a listing answer. Answers that are not IPv4 or that fall
// outside 127.0.0.0/8 are rejected.
func ParseReply(addr netip.Addr) (Reply, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return Reply{}, fmt.Errorf("%w: %s", ErrNotIPv4, addr)
	}
	o := addr.As4()
	if o[0] != ListedPrefix {
		return Reply{}, fmt.Errorf("%w: %s", ErrNotListing, addr)
	}
	return Reply{Activity: o[1], Score: o[2], Type: o[3]}, nil
}

// IsSearchEngine reports whether the search engine bit is set.
func (r Reply) IsSearchEngine() bool {
	return r.Type&MaskSearchEngine != 0
}
