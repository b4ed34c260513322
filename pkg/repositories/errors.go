package repositories

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/l10nledger/ledger/pkg/apperrors"
)

// classifyError maps driver errors onto the application sentinels so callers
// can tell validation failures from transient infrastructure errors.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: %s", apperrors.ErrUnknownReference, pgErr.Detail)
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", apperrors.ErrConflict, pgErr.Detail)
		case pgErr.Code == "23502", pgErr.Code == "23514", strings.HasPrefix(pgErr.Code, "22"):
			return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			strings.HasPrefix(pgErr.Code, "57P"),
			pgErr.Code == "40001", pgErr.Code == "40P01":
			return fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	}

	return err
}

// bodyDigest is the content address of a translation body.
func bodyDigest(body string) []byte {
	sum := sha256.Sum256([]byte(body))
	return sum[:]
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func durationToInterval(d time.Duration) pgtype.Interval {
	return pgtype.Interval{Microseconds: d.Microseconds(), Valid: true}
}

// intervalToDuration flattens days and months (as 30 days) into a duration.
func intervalToDuration(iv pgtype.Interval) time.Duration {
	if !iv.Valid {
		return 0
	}
	days := int64(iv.Days) + int64(iv.Months)*30
	return time.Duration(iv.Microseconds)*time.Microsecond + time.Duration(days)*24*time.Hour
}
