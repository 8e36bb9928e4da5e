package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MaxSQLVariables is the bound-parameter limit per statement that marks are
// chunked against.
const MaxSQLVariables = 999

// one variable per statement is taken by the upload time
const markChunkSize = MaxSQLVariables - 1

// markUploaded sets uploaded = when on the rows of table whose id is in ids
// and that have not been marked before. Large id lists are split across
// several statements within the caller's transaction.
func markUploaded(ctx context.Context, tx *sqlx.Tx, table string, ids []int64, when time.Time) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	stmt := fmt.Sprintf(`UPDATE %s SET uploaded = ? WHERE uploaded IS NULL AND id IN (?)`, table)

	var total int64
	for start := 0; start < len(ids); start += markChunkSize {
		end := min(start+markChunkSize, len(ids))

		query, args, err := sqlx.In(stmt, toNanos(when), ids[start:end])
		if err != nil {
			return 0, fmt.Errorf("failed to build %s upload mark: %w", table, err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return 0, fmt.Errorf("failed to mark %s uploaded: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	return total, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
