package alts

import (
	"context"
	"sort"

	"github.com/ernie/altcheck/internal/domain"
)

// Resolver finds the connected component of the linkage graph around a
// seed. Adjacency is fetched from the store one node at a time; nothing is
// cached between resolutions.
type Resolver struct {
	store LinkReader
}

// NewResolver creates a resolver over the given store
func NewResolver(store LinkReader) *Resolver {
	return &Resolver{store: store}
}

// Resolve walks the graph breadth-first from seed, alternating between an
// account frontier and an address frontier until both are empty.
//
// If a store lookup fails the walk stops and the sets gathered so far are
// returned with Partial set, together with the error. The seed is always
// part of the result.
func (r *Resolver) Resolve(ctx context.Context, seed domain.Seed) (domain.Cluster, error) {
	w := walk{
		accounts:  make(map[string]bool),
		addresses: make(map[string]bool),
	}

	var accountFrontier, addressFrontier []string
	if seed.Kind == domain.SeedAddress {
		addressFrontier = append(addressFrontier, seed.Value)
	} else {
		accountFrontier = append(accountFrontier, seed.Value)
	}

	for len(accountFrontier) > 0 || len(addressFrontier) > 0 {
		for len(accountFrontier) > 0 {
			account := accountFrontier[0]
			accountFrontier = accountFrontier[1:]
			if w.accounts[account] {
				continue
			}
			w.accounts[account] = true

			if err := ctx.Err(); err != nil {
				return w.partial(), err
			}
			linked, err := r.store.AddressesForAccount(ctx, account)
			w.lookups++
			if err != nil {
				return w.partial(), err
			}
			for _, address := range linked {
				if !w.addresses[address] {
					addressFrontier = append(addressFrontier, address)
				}
			}
		}

		for len(addressFrontier) > 0 {
			address := addressFrontier[0]
			addressFrontier = addressFrontier[1:]
			if w.addresses[address] {
				continue
			}
			w.addresses[address] = true

			if err := ctx.Err(); err != nil {
				return w.partial(), err
			}
			linked, err := r.store.AccountsForAddress(ctx, address)
			w.lookups++
			if err != nil {
				return w.partial(), err
			}
			for _, account := range linked {
				if !w.accounts[account] {
					accountFrontier = append(accountFrontier, account)
				}
			}
		}
	}

	clusterLookups.Observe(float64(w.lookups))
	return w.cluster(), nil
}

// walk holds the visited sets of one resolution
type walk struct {
	accounts  map[string]bool
	addresses map[string]bool
	lookups   int
}

func (w *walk) cluster() domain.Cluster {
	return domain.Cluster{
		Accounts:  sortedKeys(w.accounts),
		Addresses: sortedKeys(w.addresses),
	}
}

func (w *walk) partial() domain.Cluster {
	clusterLookups.Observe(float64(w.lookups))
	c := w.cluster()
	c.Partial = true
	return c
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
