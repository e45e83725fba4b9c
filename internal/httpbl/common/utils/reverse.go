package utils

import (
	"slices"
	"strings"
)

// ReverseIPv4 reverses the dot-separated components of ip, turning
// "1.2.3.4" into "4.3.2.1". The input is not validated: any string is
// split on dots and reassembled in reverse order.
func ReverseIPv4(ip string) string {
	parts := strings.Split(ip, ".")
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}
