package repository

import (
	"context"

	credentials "github.com/goliatone/go-credentials"
	"github.com/uptrace/bun"
)

var accountIndexes = []struct {
	name   string
	column string
}{
	{name: "idx_accounts_verification_token", column: "verification_token"},
	{name: "idx_accounts_reset_token", column: "reset_token"},
}

// CreateSchema creates the accounts table and its token lookup indexes.
// It is safe to call on an existing database.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*credentials.Account)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	for _, idx := range accountIndexes {
		_, err := db.NewCreateIndex().
			Model((*credentials.Account)(nil)).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}
