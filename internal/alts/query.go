package alts

import (
	"context"

	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/logger"
)

// QueryService answers on-demand cluster lookups. It never writes.
type QueryService struct {
	resolver *Resolver
	log      *logger.Logger
}

// NewQueryService creates a query service over the given store
func NewQueryService(store LinkReader, log *logger.Logger) *QueryService {
	if log == nil {
		log = logger.Nop()
	}
	return &QueryService{
		resolver: NewResolver(store),
		log:      log.With("component", "query"),
	}
}

// Query classifies rawSeed and resolves its full cluster.
//
// On a store failure the cluster gathered so far is returned with Partial
// set alongside the error; callers decide whether to show it.
func (q *QueryService) Query(ctx context.Context, rawSeed string) (domain.Cluster, error) {
	seed, err := ClassifySeed(rawSeed)
	if err != nil {
		return domain.Cluster{Accounts: []string{}, Addresses: []string{}}, err
	}
	return q.Resolve(ctx, seed)
}

// Resolve resolves a seed whose kind the caller already knows
func (q *QueryService) Resolve(ctx context.Context, seed domain.Seed) (domain.Cluster, error) {
	cluster, err := q.resolver.Resolve(ctx, seed)
	clusterSize.Observe(float64(len(cluster.Accounts) + len(cluster.Addresses)))
	if err != nil {
		clusterResolutions.WithLabelValues("partial").Inc()
		q.log.Error("Cluster resolution failed",
			"op", "resolve",
			"seed", seed.Value,
			"seed_kind", seed.Kind.String(),
			"accounts_collected", len(cluster.Accounts),
			"addresses_collected", len(cluster.Addresses),
			"error", err)
		return cluster, err
	}
	clusterResolutions.WithLabelValues("complete").Inc()
	return cluster, nil
}
