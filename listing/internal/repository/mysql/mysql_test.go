package mysql

import (
	"errors"
	"testing"

	"tourbook/listing/internal/repository"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestTransient(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"deadlock":          {err: &mysql.MySQLError{Number: 1213}, want: true},
		"lock wait timeout": {err: &mysql.MySQLError{Number: 1205}, want: true},
		"duplicate entry":   {err: &mysql.MySQLError{Number: 1062}},
		"other":             {err: errors.New("boom")},
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
