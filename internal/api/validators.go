package api

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/ernie/altcheck/internal/domain"
)

const minPasswordLen = 8

// validateAccount checks an account name from a request body
func validateAccount(account string) error {
	if strings.TrimSpace(account) == "" {
		return fmt.Errorf("account is required")
	}
	if utf8.RuneCountInString(account) > domain.MaxAccountLen {
		return fmt.Errorf("account exceeds %d characters", domain.MaxAccountLen)
	}
	return nil
}

// validateAddress checks that ip is an IPv4 or IPv6 literal
func validateAddress(ip string) error {
	if ip == "" {
		return fmt.Errorf("ip is required")
	}
	if utf8.RuneCountInString(ip) > domain.MaxAddressLen {
		return fmt.Errorf("ip exceeds %d characters", domain.MaxAddressLen)
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return fmt.Errorf("ip %q is not an IP address", ip)
	}
	return nil
}

// validatePassword enforces the minimum password length
func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}
