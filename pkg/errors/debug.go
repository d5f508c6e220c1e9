package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const maxChainDepth = 16

// ErrorDump is the log-only view of an error: the full cause chain plus any
// Postgres diagnostics. It never reaches a response body.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Chain: chain(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint = pgxErr.Code, pgxErr.ConstraintName
		d.PGTable, d.PGColumn = pgxErr.TableName, pgxErr.ColumnName
		d.PGDetail, d.PGMessage = pgxErr.Detail, pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode, d.PGConstraint = string(pqErr.Code), pqErr.Constraint
		d.PGTable, d.PGColumn = pqErr.Table, pqErr.Column
		d.PGDetail, d.PGMessage = pqErr.Detail, pqErr.Message
	}
	return d
}

// Fields renders the dump as structured log fields, skipping empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	set := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	set("error_code", string(d.Code))
	set("pg_code", d.PGCode)
	set("pg_constraint", d.PGConstraint)
	set("pg_table", d.PGTable)
	set("pg_column", d.PGColumn)
	set("pg_detail", d.PGDetail)
	set("pg_message", d.PGMessage)
	if len(d.Chain) > 0 {
		fields["error_chain"] = d.Chain
	}
	return fields
}

// chain lists every error reachable through Unwrap, depth first, following
// both single and joined causes.
func chain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if e == nil || len(out) >= maxChainDepth {
			return
		}
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}
