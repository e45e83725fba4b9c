package domain

import (
	"net/netip"
	"strings"
)

// ResourceRecord is a record decoded from a DNS response.
type ResourceRecord struct {
	Name  string
	Type  RRType
	Class RRClass
	TTL   uint32
	Data  []byte // raw RDATA
}

// IPv4 returns the address carried by an A record.
func (rr ResourceRecord) IPv4() (netip.Addr, bool) {
	if rr.Type != RRTypeA || len(rr.Data) != 4 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte(rr.Data)), true
}

// DNSResponse represents a DNS response with answer, authority, and additional sections.
type DNSResponse struct {
	ID         uint16
	RCode      RCode
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// IsError returns true if the response indicates an error condition.
func (resp DNSResponse) IsError() bool {
	return resp.RCode != RCodeNoError
}

// HasAnswers returns true if the response contains answer records.
func (resp DNSResponse) HasAnswers() bool {
	return len(resp.Answers) > 0
}

// FirstIPv4 returns the first A record in the answer section. When name is
// not empty only records owned by that name are considered; CNAME chains are
// followed by accepting any A record if none match the name directly.
func (resp DNSResponse) FirstIPv4(name string) (netip.Addr, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	var fallback netip.Addr
	found := false
	for _, rr := range resp.Answers {
		addr, ok := rr.IPv4()
		if !ok {
			continue
		}
		if name == "" || strings.ToLower(strings.TrimSuffix(rr.Name, ".")) == name {
			return addr, true
		}
		if !found {
			fallback, found = addr, true
		}
	}
	return fallback, found
}
