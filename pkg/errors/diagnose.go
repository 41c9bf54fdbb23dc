package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

const maxCauses = 16

// Diagnostics describes a failure for the server log. It is never sent to clients.
type Diagnostics struct {
	Message  string
	Code     Code
	Causes   []string
	Postgres *PostgresDetail
}

// PostgresDetail carries the server-side fields of a Postgres error.
type PostgresDetail struct {
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Diagnose walks err, including errors combined with multierr or errors.Join,
// and pulls out the typed code and any Postgres error found along the way.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error(), Postgres: postgresDetail(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}

	queue := []error{err}
	for len(queue) > 0 && len(d.Causes) < maxCauses {
		current := queue[0]
		queue = queue[1:]
		d.Causes = append(d.Causes, fmt.Sprintf("%T: %v", current, current))

		if parts := multierr.Errors(current); len(parts) > 1 {
			queue = append(queue, parts...)
			continue
		}
		if next := errors.Unwrap(current); next != nil {
			queue = append(queue, next)
		}
	}
	return d
}

// Fields flattens d into structured log fields. Empty Postgres fields are omitted.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{
		"error":        d.Message,
		"error_code":   d.Code,
		"error_causes": d.Causes,
	}
	if pg := d.Postgres; pg != nil {
		for key, value := range map[string]string{
			"pg_code":       pg.SQLState,
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

func postgresDetail(err error) *PostgresDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PostgresDetail{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PostgresDetail{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
