package alts

import (
	"errors"
	"net/netip"
	"strings"

	"github.com/ernie/altcheck/internal/domain"
)

// ErrEmptySeed is returned when a lookup has nothing to start from
var ErrEmptySeed = errors.New("empty seed")

// Explicit seed tags, e.g. "ip:10.0.0.1" or "account:some.name"
const (
	addressTag = "ip:"
	accountTag = "account:"
)

// ClassifySeed decides whether raw names an account or an address.
// An explicit tag always wins; otherwise anything that parses as an IPv4
// or IPv6 literal is an address and everything else is an account.
func ClassifySeed(raw string) (domain.Seed, error) {
	raw = strings.TrimSpace(raw)

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, addressTag):
		return taggedSeed(domain.SeedAddress, raw[len(addressTag):])
	case strings.HasPrefix(lower, accountTag):
		return taggedSeed(domain.SeedAccount, raw[len(accountTag):])
	}

	if raw == "" {
		return domain.Seed{}, ErrEmptySeed
	}
	if _, err := netip.ParseAddr(raw); err == nil {
		return domain.Seed{Kind: domain.SeedAddress, Value: raw}, nil
	}
	return domain.Seed{Kind: domain.SeedAccount, Value: raw}, nil
}

func taggedSeed(kind domain.SeedKind, value string) (domain.Seed, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Seed{}, ErrEmptySeed
	}
	return domain.Seed{Kind: kind, Value: value}, nil
}
