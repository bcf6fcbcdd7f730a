package kafka

import (
	"testing"

	"tourbook/listing/pkg/model"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	v := validator.New()
	tests := []struct {
		name    string
		value   string
		want    model.ModerationEvent
		wantErr bool
	}{
		{
			name:  "approve",
			value: `{"reviewId":"r1","action":"approve","moderatorId":"s1"}`,
			want:  model.ModerationEvent{ReviewID: "r1", Action: model.ModerationApprove, ModeratorID: "s1"},
		},
		{
			name:  "delete without moderator",
			value: `{"reviewId":"r2","action":"delete"}`,
			want:  model.ModerationEvent{ReviewID: "r2", Action: model.ModerationDelete},
		},
		{name: "unknown action", value: `{"reviewId":"r1","action":"publish"}`, wantErr: true},
		{name: "missing review", value: `{"action":"reject"}`, wantErr: true},
		{name: "not json", value: `approve r1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(v, []byte(tt.value))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
