package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorDump is the flattened, log-friendly view of an error.
type ErrorDump struct {
	Message   string   `json:"message"`
	Code      Code     `json:"code,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
	Timeout   bool     `json:"timeout,omitempty"`
	Canceled  bool     `json:"canceled,omitempty"`
	Chain     []string `json:"chain,omitempty"`
	Postgres  *PGInfo  `json:"postgres,omitempty"`
}

// PGInfo carries the parts of a Postgres error worth alerting on.
type PGInfo struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{
		Message:  err.Error(),
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Canceled: errors.Is(err, context.Canceled),
	}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Retryable = MetadataFor(d.Code).Retryable
	}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", cur, cur))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.Postgres = &PGInfo{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Detail:     pgErr.Detail,
		}
	}
	return d
}

// Fields renders the dump as logger fields; empty flags are left out.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.Timeout {
		fields["timeout"] = true
	}
	if d.Canceled {
		fields["canceled"] = true
	}
	if d.Postgres != nil {
		fields["pg_code"] = d.Postgres.Code
		if d.Postgres.Constraint != "" {
			fields["pg_constraint"] = d.Postgres.Constraint
		}
	}
	return fields
}
