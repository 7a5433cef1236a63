package repositories

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tariffscope/admission/internal/core/domain/violation"
	"github.com/tariffscope/admission/internal/core/ports"
	"github.com/tariffscope/admission/internal/infrastructure/db"
)

type violationRepository struct {
	db     *db.Database
	logger *logrus.Logger
}

// NewViolationRepository creates the Postgres-backed violation log.
func NewViolationRepository(database *db.Database, logger *logrus.Logger) ports.ViolationRepository {
	return &violationRepository{db: database, logger: logger}
}

// Create appends a violation row. Rows are immutable audit evidence; there
// is deliberately no update method on this repository.
func (r *violationRepository) Create(ctx context.Context, v *violation.Violation) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO violations (
			id, subject, scope, limit_value, observed_count, endpoint,
			user_id, user_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.DB.ExecContext(ctx, query,
		v.ID,
		v.Subject,
		v.Scope,
		v.Limit,
		v.ObservedCount,
		v.Endpoint,
		v.UserID,
		v.UserAgent,
		v.CreatedAt,
	)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"subject": v.Subject, "scope": v.Scope}).WithError(err).Error("db: failed to insert violation")
		}
		return err
	}
	return nil
}

// List retrieves violations matching the filter, newest first.
func (r *violationRepository) List(ctx context.Context, filter *violation.Filter) ([]*violation.Violation, error) {
	query, args := r.buildListQuery(filter, false)
	var violations []*violation.Violation
	if err := r.db.DB.SelectContext(ctx, &violations, query, args...); err != nil {
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"query": query}).WithError(err).Error("db: failed to execute violation list query")
		}
		return nil, err
	}
	return violations, nil
}

// Count returns the total number of violations matching the filter.
func (r *violationRepository) Count(ctx context.Context, filter *violation.Filter) (int, error) {
	query, args := r.buildListQuery(filter, true)
	var count int
	if err := r.db.DB.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

// TopViolators ranks subjects by violation count since the cutoff.
func (r *violationRepository) TopViolators(ctx context.Context, since time.Time, n int) ([]*violation.ViolatorRank, error) {
	query := `
		SELECT subject, scope, COUNT(id) AS violations
		FROM violations
		WHERE created_at >= $1
		GROUP BY subject, scope
		ORDER BY violations DESC
		LIMIT $2`

	var ranks []*violation.ViolatorRank
	if err := r.db.DB.SelectContext(ctx, &ranks, query, since, n); err != nil {
		return nil, err
	}
	return ranks, nil
}

// DeleteOlderThan ages out rows past the retention horizon.
func (r *violationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM violations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// buildListQuery constructs the SQL query and arguments for listing/counting violations
func (r *violationRepository) buildListQuery(filter *violation.Filter, isCount bool) (string, []interface{}) {
	var selectClause string
	if isCount {
		selectClause = "SELECT COUNT(*)"
	} else {
		selectClause = `SELECT
			id, subject, scope, limit_value, observed_count, endpoint,
			user_id, user_agent, created_at`
	}

	query := selectClause + " FROM violations"
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter != nil {
		if filter.Subject != nil {
			conditions = append(conditions, "subject = $"+strconv.Itoa(argIndex))
			args = append(args, *filter.Subject)
			argIndex++
		}

		if filter.Scope != nil {
			conditions = append(conditions, "scope = $"+strconv.Itoa(argIndex))
			args = append(args, string(*filter.Scope))
			argIndex++
		}

		if filter.Since != nil {
			conditions = append(conditions, "created_at >= $"+strconv.Itoa(argIndex))
			args = append(args, *filter.Since)
			argIndex++
		}

		if filter.Until != nil {
			conditions = append(conditions, "created_at <= $"+strconv.Itoa(argIndex))
			args = append(args, *filter.Until)
			argIndex++
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if !isCount {
		query += " ORDER BY created_at DESC"

		if filter != nil {
			if filter.Limit > 0 {
				query += " LIMIT $" + strconv.Itoa(argIndex)
				args = append(args, filter.Limit)
				argIndex++
			}

			if filter.Offset > 0 {
				query += " OFFSET $" + strconv.Itoa(argIndex)
				args = append(args, filter.Offset)
				argIndex++
			}
		}
	}

	return query, args
}
