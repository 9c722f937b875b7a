// internal/dataset/postgres.go
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"credit-audit/internal/common/errors"
	"credit-audit/internal/models"
)

// PostgresQuerier is the slice of *sql.DB the source needs.
type PostgresQuerier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresSource reads every row of an applicant-profile table. Column
// names become field names; values are coerced the same way CSV cells are.
type PostgresSource struct {
	db    PostgresQuerier
	table string
}

func NewPostgresSource(db PostgresQuerier, table string) *PostgresSource {
	return &PostgresSource{db: db, table: table}
}

func (s *PostgresSource) Load(ctx context.Context) ([]models.Profile, error) {
	if !validTableName.MatchString(s.table) {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("invalid table name %q", s.table))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", s.table))
	if err != nil {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("query %s: %v", s.table, err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("read columns of %s: %v", s.table, err))
	}

	var profiles []models.Profile
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewDatasetLoadError(fmt.Sprintf("scan row of %s: %v", s.table, err))
		}

		p := make(models.Profile, len(cols))
		for i, col := range cols {
			p[col] = normalizeSQLValue(values[i])
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("iterate %s: %v", s.table, err))
	}

	if len(profiles) == 0 {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("table %s contains no profiles", s.table))
	}
	return profiles, nil
}

// normalizeSQLValue maps driver values onto the profile value types. lib/pq
// hands back []byte for text and numeric columns, so byte slices go through
// the same coercion as CSV cells.
func normalizeSQLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return coerce(string(t))
	case int64:
		return float64(t)
	case float64, bool, string:
		return t
	}
	return fmt.Sprintf("%v", v)
}
