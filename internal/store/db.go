package store

import (
	"context"
	"database/sql"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Querier is any read handle: the pool for plain reads, a *sqlx.Tx inside a
// unit of work.
type Querier interface {
	Getter
	Selecter
}

type DB interface {
	Execer
	Getter
	Selecter
}
