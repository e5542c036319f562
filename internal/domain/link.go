package domain

import "strings"

// Column bounds for the ip_links relation
const (
	MaxAccountLen = 32
	MaxAddressLen = 45 // longest textual IPv6 form (IPv4-mapped)
)

// Link is a recorded (account, address) co-occurrence
type Link struct {
	Account string `json:"account"`
	Address string `json:"ip"`
}

// SeedKind says which side of the linkage graph a seed starts on
type SeedKind int

const (
	SeedAccount SeedKind = iota
	SeedAddress
)

func (k SeedKind) String() string {
	switch k {
	case SeedAccount:
		return "account"
	case SeedAddress:
		return "address"
	default:
		return "unknown"
	}
}

// Seed is a classified starting node for a cluster resolution
type Seed struct {
	Kind  SeedKind
	Value string
}

// Cluster is the connected component reached from a seed.
// Partial is set when the traversal stopped early on a store failure.
type Cluster struct {
	Accounts  []string `json:"accounts"`
	Addresses []string `json:"addresses"`
	Partial   bool     `json:"partial,omitempty"`
}

// Lines renders the two-line display used by the lookup command
func (c Cluster) Lines() []string {
	return []string{
		"Linked accounts: " + strings.Join(c.Accounts, ", "),
		"IPs: " + strings.Join(c.Addresses, ", "),
	}
}
