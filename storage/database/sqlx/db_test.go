package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kadi/core"
)

func Test_mapErr(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name  string
		err   error
		check func(err error) bool
	}{
		{name: "no rows", err: sql.ErrNoRows, check: core.IsNotFound},
		{name: "wrapped no rows", err: errors.Wrap(sql.ErrNoRows, "selecting"), check: core.IsNotFound},
		{name: "unique violation", err: &pq.Error{Code: "23505", Constraint: "students_student_code_key"}, check: core.IsConflict},
		{name: "foreign key violation", err: &pq.Error{Code: "23503", Constraint: "student_subjects_student_id_fkey"}, check: core.IsNotFound},
		{name: "malformed uuid", err: &pq.Error{Code: "22P02"}, check: core.IsNotFound},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, check: core.IsUnavailable},
		{name: "connection does not exist", err: &pq.Error{Code: "08003"}, check: core.IsUnavailable},
		{name: "bad conn", err: driver.ErrBadConn, check: core.IsUnavailable},
		{name: "network error", err: dialErr, check: core.IsUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErr(tt.err, "student", "s-1", "querying students")
			assert.True(t, tt.check(got), "mapErr() = %v", got)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, mapErr(nil, "student", "s-1", "querying students"))
	})

	t.Run("unknown errors are wrapped", func(t *testing.T) {
		cause := &pq.Error{Code: "42601", Message: "syntax error"}
		got := mapErr(cause, "student", "s-1", "querying students")
		assert.False(t, core.IsNotFound(got) || core.IsConflict(got) || core.IsUnavailable(got))
		assert.Equal(t, cause, errors.Cause(got))
		assert.Contains(t, got.Error(), "querying students")
	})

	t.Run("referenced resource", func(t *testing.T) {
		var nf *core.NotFoundError
		got := mapErr(&pq.Error{Code: "23503", Constraint: "reports_student_id_fkey"}, "report", "r-1", "inserting report")
		if assert.True(t, errors.As(got, &nf)) {
			assert.Equal(t, "student", nf.Resource)
		}
	})
}
