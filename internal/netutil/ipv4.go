// Package netutil provides IPv4 subnet arithmetic on dotted-decimal strings.
package netutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned for malformed IPv4 addresses, masks or MAC addresses.
var ErrInvalidFormat = errors.New("invalid format")

// Octets is an IPv4 address split into its four octets.
type Octets [4]int

// ParseOctets splits a dotted-decimal IPv4 string into octets.
func ParseOctets(s string) (Octets, error) {
	var o Octets

	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return o, fmt.Errorf("%w: %q is not a dotted-decimal IPv4 address", ErrInvalidFormat, s)
	}

	for i, part := range parts {
		if part == "" || len(part) > 3 || strings.TrimLeft(part, "0123456789") != "" {
			return o, fmt.Errorf("%w: octet %q in %q", ErrInvalidFormat, part, s)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n > 255 {
			return o, fmt.Errorf("%w: octet %q in %q out of range", ErrInvalidFormat, part, s)
		}
		o[i] = n
	}

	return o, nil
}

// String joins the octets back into dotted-decimal form.
func (o Octets) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", o[0], o[1], o[2], o[3])
}

// SameSubnet reports whether a and b are in the same subnet under mask.
func SameSubnet(a, b, mask string) (bool, error) {
	ao, err := ParseOctets(a)
	if err != nil {
		return false, err
	}
	bo, err := ParseOctets(b)
	if err != nil {
		return false, err
	}
	mo, err := ParseOctets(mask)
	if err != nil {
		return false, err
	}

	for i := range ao {
		if ao[i]&mo[i] != bo[i]&mo[i] {
			return false, nil
		}
	}
	return true, nil
}

// BroadcastAddress computes the directed broadcast address of addr under mask.
func BroadcastAddress(addr, mask string) (string, error) {
	ao, err := ParseOctets(addr)
	if err != nil {
		return "", err
	}
	mo, err := ParseOctets(mask)
	if err != nil {
		return "", err
	}

	var b Octets
	for i := range ao {
		b[i] = ao[i] | (^mo[i] & 0xFF)
	}
	return b.String(), nil
}

// IsValid reports whether s is a well-formed dotted-decimal IPv4 address.
func IsValid(s string) bool {
	_, err := ParseOctets(s)
	return err == nil
}
