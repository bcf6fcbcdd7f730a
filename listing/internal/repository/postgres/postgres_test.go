package postgres

import (
	"errors"
	"testing"

	"tourbook/listing/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTransient(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"serialization failure": {err: &pgconn.PgError{Code: "40001"}, want: true},
		"deadlock":              {err: &pgconn.PgError{Code: "40P01"}, want: true},
		"unique violation":      {err: &pgconn.PgError{Code: "23505"}},
		"other":                 {err: errors.New("boom")},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := transient(tt.err)
			assert.Equal(t, tt.want, errors.Is(got, repository.ErrTransient))
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, transient(nil))
}
