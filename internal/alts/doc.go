// Package alts correlates player accounts through the network addresses
// they connect from.
//
// The linkage graph is bipartite: accounts on one side, addresses on the
// other, an edge for every (account, address) pair ever observed. Two entry
// points sit on top of it:
//
//   - JoinHandler.OnConnect records the edge for a new connection and
//     reports the other accounts seen on that exact address (one hop).
//   - QueryService.Query resolves the full connected component around an
//     arbitrary account or address.
//
// Neither keeps state between calls; the LinkStore is the single source of
// truth and the graph is only ever materialised one lookup at a time.
package alts

import "context"

// LinkReader is the read side of the link store used by the resolver
type LinkReader interface {
	AddressesForAccount(ctx context.Context, account string) ([]string, error)
	AccountsForAddress(ctx context.Context, address string) ([]string, error)
}

// LinkStore adds the idempotent edge write used on connection
type LinkStore interface {
	LinkReader
	RecordLink(ctx context.Context, account, address string) (bool, error)
}
