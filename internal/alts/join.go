package alts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/logger"
	"github.com/ernie/altcheck/internal/storage"
	"github.com/google/uuid"
)

// JoinHandler handles the connection path: record the edge, then report
// which other accounts have used the same address.
type JoinHandler struct {
	store  LinkStore
	log    *logger.Logger
	prefix string
	now    func() time.Time
}

// NewJoinHandler creates a join handler. prefix is the alert message prefix;
// empty means domain.DefaultAlertPrefix.
func NewJoinHandler(store LinkStore, log *logger.Logger, prefix string) *JoinHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &JoinHandler{
		store:  store,
		log:    log.With("component", "join"),
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OnConnect records (account, address) and returns the other accounts ever
// seen on that exact address. This is a one-hop lookup, not a cluster
// resolution. The connecting account is excluded case-insensitively;
// differently named accounts are never collapsed.
//
// A failed write is logged and the lookup still runs, since the address
// may already have history. A failed lookup returns the error and no alts.
func (h *JoinHandler) OnConnect(ctx context.Context, account, address string) ([]string, error) {
	inserted, err := h.store.RecordLink(ctx, account, address)
	switch {
	case errors.Is(err, storage.ErrInvalidLink):
		linksRecorded.WithLabelValues("error").Inc()
		return nil, err
	case err != nil:
		linksRecorded.WithLabelValues("error").Inc()
		h.log.Warn("Failed to record link", "account", account, "ip", address, "error", err)
	case inserted:
		linksRecorded.WithLabelValues("inserted").Inc()
		h.log.Debug("New link recorded", "account", account, "ip", address)
	default:
		linksRecorded.WithLabelValues("existing").Inc()
	}

	accounts, err := h.store.AccountsForAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	var alts []string
	for _, other := range accounts {
		if strings.EqualFold(other, account) {
			continue
		}
		alts = append(alts, other)
	}
	return alts, nil
}

// HandleConnect runs OnConnect and wraps a non-empty result as an alert.
// It returns nil when there is nothing to notify.
func (h *JoinHandler) HandleConnect(ctx context.Context, source, account, address string) (*domain.Alert, error) {
	alts, err := h.OnConnect(ctx, account, address)
	if err != nil {
		return nil, err
	}
	if len(alts) == 0 {
		return nil, nil
	}

	alertsRaised.Inc()
	alert := &domain.Alert{
		ID:        uuid.NewString(),
		Source:    source,
		Account:   account,
		Address:   address,
		Alts:      alts,
		Timestamp: h.now(),
		Prefix:    h.prefix,
	}
	h.log.Info("Shared address detected", "account", account, "ip", address, "alts", alts, "source", source)
	return alert, nil
}
