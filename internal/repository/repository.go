package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"
)

type Repository struct {
	DB            *sql.DB
	GoquDBWrapper *goqu.Database
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		DB:            db,
		GoquDBWrapper: goqu.New("postgres", db),
	}
}

// WithTransaction runs fn inside a serializable transaction. Serializable
// isolation is what makes over-reservation structurally impossible: two
// concurrent reservers against the same unit cannot both observe the same
// availability and commit. Serialization failures surface as
// apperrors.ErrTransactionFailed so callers know the attempt is retryable.
func WithTransaction(ctx context.Context, db *Repository, fn func(tx *goqu.TxDatabase) error) (err error) {
	rawTx, err := db.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", apperrors.WrapDBError(err))
	}

	tx := goqu.NewTx("postgres", rawTx)
	defer func() {
		if p := recover(); p != nil {
			rawTx.Rollback()
			panic(p)
		} else if err != nil {
			rawTx.Rollback()
			err = translateTxError(ctx, err)
		} else {
			err = translateTxError(ctx, apperrors.WrapDBError(rawTx.Commit()))
		}
	}()

	err = fn(tx)
	return
}

func translateTxError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return apperrors.WrapDBError(err)
}
