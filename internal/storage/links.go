package storage

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ernie/altcheck/internal/domain"
)

// --- Link methods ---

func validateLink(account, address string) error {
	switch {
	case account == "":
		return fmt.Errorf("%w: empty account", ErrInvalidLink)
	case address == "":
		return fmt.Errorf("%w: empty address", ErrInvalidLink)
	case utf8.RuneCountInString(account) > domain.MaxAccountLen:
		return fmt.Errorf("%w: account longer than %d characters", ErrInvalidLink, domain.MaxAccountLen)
	case utf8.RuneCountInString(address) > domain.MaxAddressLen:
		return fmt.Errorf("%w: address longer than %d characters", ErrInvalidLink, domain.MaxAddressLen)
	}
	return nil
}

// RecordLink stores the (account, address) edge if it is not already
// present. The unique constraint makes concurrent inserts of the same pair
// collapse to one row; inserted reports whether this call created it.
func (s *Store) RecordLink(ctx context.Context, account, address string) (bool, error) {
	if err := validateLink(account, address); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, queryError("recordLink", account, err)
	}

	result, err := s.exec(ctx, `
		INSERT INTO ip_links (account, ip) VALUES (?, ?)
		ON CONFLICT (account, ip) DO NOTHING
	`, account, address)
	if err != nil {
		return false, queryError("recordLink", account, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		// Edge is stored either way; the flag is diagnostic
		return false, nil
	}
	return rows > 0, nil
}

// AddressesForAccount returns every address ever linked to the account
func (s *Store) AddressesForAccount(ctx context.Context, account string) ([]string, error) {
	return s.column(ctx, "addressesForAccount", account,
		`SELECT ip FROM ip_links WHERE account = ? ORDER BY ip`)
}

// AccountsForAddress returns every account ever linked to the address
func (s *Store) AccountsForAddress(ctx context.Context, address string) ([]string, error) {
	return s.column(ctx, "accountsForAddress", address,
		`SELECT account FROM ip_links WHERE ip = ? ORDER BY account`)
}

// column runs a single-column lookup keyed on one value
func (s *Store) column(ctx context.Context, op, key, query string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, queryError(op, key, err)
	}

	rows, err := s.query(ctx, query, key)
	if err != nil {
		return nil, queryError(op, key, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, queryError(op, key, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(op, key, err)
	}
	return values, nil
}

// CountLinks returns the number of stored edges
func (s *Store) CountLinks(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, queryError("countLinks", "", err)
	}
	var n int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM ip_links`).Scan(&n); err != nil {
		return 0, queryError("countLinks", "", err)
	}
	return n, nil
}

// EachLink streams every stored edge to fn in (account, ip) order.
// Iteration stops at the first error returned by fn.
func (s *Store) EachLink(ctx context.Context, fn func(domain.Link) error) error {
	if err := s.ready(); err != nil {
		return queryError("eachLink", "", err)
	}

	rows, err := s.query(ctx, `SELECT account, ip FROM ip_links ORDER BY account, ip`)
	if err != nil {
		return queryError("eachLink", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.Account, &l.Address); err != nil {
			return queryError("eachLink", "", err)
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return queryError("eachLink", "", err)
	}
	return nil
}
