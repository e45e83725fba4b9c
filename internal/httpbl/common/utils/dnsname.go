package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDNSName returns a DNS name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// FQDN returns name with exactly one trailing dot, as required on the wire.
func FQDN(name string) string {
	return CanonicalDNSName(name) + "."
}

// RegisteredDomain returns the eTLD+1 of name, e.g. "httpbl.org" for
// "dnsbl.httpbl.org". It fails for bare public suffixes and malformed names.
func RegisteredDomain(name string) (string, error) {
	return publicsuffix.EffectiveTLDPlusOne(CanonicalDNSName(name))
}
