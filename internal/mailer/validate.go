package mailer

import (
	"fmt"
	"regexp"
	"strings"
)

// addressPattern accepts local@domain.tld with a dotted domain. It is a
// deliverability gate, not a full RFC 5322 parser.
var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidAddress reports whether a single address passes the deliverability gate.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(strings.TrimSpace(addr))
}

// ValidateRecipients checks every address and returns an error naming the
// first invalid one. An empty list is rejected.
func ValidateRecipients(addrs []string) error {
	if len(addrs) == 0 {
		return fmt.Errorf("no recipients provided")
	}
	for _, addr := range addrs {
		if !ValidAddress(addr) {
			return fmt.Errorf("invalid recipient address: %s", strings.TrimSpace(addr))
		}
	}
	return nil
}
