package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

// CreateAccount implements the AccountStore interface.
func (s *SQLStore) CreateAccount(ctx context.Context, name, apiKey string) (schema.Account, error) {
	acct := schema.Account{Name: name, APIKey: apiKey, CreatedAt: schema.FromMillis(schema.ToMillis(time.Now()))}
	query := fmt.Sprintf("INSERT INTO %s (name, api_key, created_at) VALUES (?, ?, ?)", accountsTable)
	id, err := s.insertID(ctx, s.db, query, acct.Name, acct.APIKey, schema.ToMillis(acct.CreatedAt))
	if err != nil {
		return schema.Account{}, errs.Wrap(errs.CodeDatabase, "failed to create account", err)
	}
	acct.ID = id
	return acct, nil
}

// GetAccountByAPIKey implements the AccountStore interface.
func (s *SQLStore) GetAccountByAPIKey(ctx context.Context, apiKey string) (schema.Account, error) {
	query := fmt.Sprintf("SELECT id, name, api_key, created_at FROM %s WHERE api_key = ?", accountsTable)
	var acct schema.Account
	var created int64
	err := s.db.QueryRowContext(ctx, s.q(query), apiKey).Scan(&acct.ID, &acct.Name, &acct.APIKey, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Account{}, errs.NotFound("account")
	}
	if err != nil {
		return schema.Account{}, errs.Wrap(errs.CodeDatabase, "failed to get account", err)
	}
	acct.CreatedAt = schema.FromMillis(created)
	return acct, nil
}
