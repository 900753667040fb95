package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// ClaimKey records a processed request key for module. It must run inside the
// transaction doing the work so a rollback releases the key again.
func ClaimKey(ctx context.Context, q Querier, module, key string) error {
	if module == "" || key == "" {
		return errors.New("platform/db: idempotency module and key required")
	}
	cmd, err := q.Exec(ctx, `INSERT INTO idempotency_keys (module, key) VALUES ($1, $2) ON CONFLICT DO NOTHING`, module, key)
	if err != nil {
		return Translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s key %q", shared.ErrDuplicateRequest, module, key)
	}
	return nil
}

// PruneKeys removes keys claimed before cutoff.
func PruneKeys(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	cmd, err := q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
