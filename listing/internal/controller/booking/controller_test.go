package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"tourbook/listing/internal/identity"
	"tourbook/listing/internal/repository"
	"tourbook/listing/internal/repository/memory"
	"tourbook/listing/pkg/model"

	repomock "tourbook/listing/internal/repository/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func newController(t *testing.T, subjects ...model.Subject) *Controller {
	t.Helper()
	repo := memory.New(zap.NewNop())
	require.NoError(t, repo.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		for i := range subjects {
			if err := tx.PutSubject(ctx, &subjects[i]); err != nil {
				return err
			}
		}
		return nil
	}))
	ids, err := identity.New("test-salt", 8, nil)
	require.NoError(t, err)
	return New(repo, ids, zap.NewNop())
}

func TestCreate(t *testing.T) {
	visit := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)
	c := newController(t,
		model.Subject{Ref: model.BusinessRef("open"), Name: "Open", Status: model.BusinessApproved},
		model.Subject{Ref: model.BusinessRef("pending"), Name: "Pending", Status: model.BusinessPending},
		model.Subject{Ref: model.TouristSpotRef("closed"), Name: "Closed", Status: model.TouristSpotUnderMaintenance},
		model.Subject{Ref: model.EventRef("past"), Name: "Past", Status: model.EventCompleted},
		model.Subject{Ref: model.EventRef("live"), Name: "Live", Status: model.EventOngoing},
	)
	tests := []struct {
		name    string
		booking model.Booking
		wantErr error
	}{
		{"approved business", model.Booking{UserID: "u1", Subject: model.BusinessRef("open"), Guests: 2, VisitDate: visit}, nil},
		{"ongoing event", model.Booking{UserID: "u1", Subject: model.EventRef("live"), Guests: 1, VisitDate: visit}, nil},
		{"pending business", model.Booking{UserID: "u1", Subject: model.BusinessRef("pending"), Guests: 1}, ErrNotBookable},
		{"spot under maintenance", model.Booking{UserID: "u1", Subject: model.TouristSpotRef("closed"), Guests: 1}, ErrNotBookable},
		{"completed event", model.Booking{UserID: "u1", Subject: model.EventRef("past"), Guests: 1}, ErrNotBookable},
		{"missing subject", model.Booking{UserID: "u1", Subject: model.EventRef("nope"), Guests: 1}, ErrSubjectNotFound},
		{"no guests", model.Booking{UserID: "u1", Subject: model.BusinessRef("open")}, ErrInvalidBooking},
		{"no user", model.Booking{Subject: model.BusinessRef("open"), Guests: 1}, ErrInvalidBooking},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := c.Create(context.Background(), &tt.booking)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.BookingPending, b.Status)
			assert.NotEmpty(t, b.ID)
			assert.Regexp(t, `^TB-[A-Z0-9]{8,}$`, string(b.Number))

			got, err := c.Get(context.Background(), b.Number)
			require.NoError(t, err)
			assert.Equal(t, b.ID, got.ID)
		})
	}
}

func TestCreateAssignsDistinctNumbers(t *testing.T) {
	c := newController(t, model.Subject{Ref: model.TouristSpotRef("beach"), Name: "Beach", Status: model.TouristSpotActive})
	seen := map[model.BookingNumber]bool{}
	for i := 0; i < 20; i++ {
		b, err := c.Create(context.Background(), &model.Booking{UserID: "u1", Subject: model.TouristSpotRef("beach"), Guests: 1})
		require.NoError(t, err)
		assert.False(t, seen[b.Number])
		seen[b.Number] = true
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	c := newController(t, model.Subject{Ref: model.BusinessRef("b"), Name: "B", Status: model.BusinessApproved})
	b, err := c.Create(ctx, &model.Booking{UserID: "u1", Subject: model.BusinessRef("b"), Guests: 3})
	require.NoError(t, err)

	_, err = c.UpdateStatus(ctx, b.Number, model.BookingCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := c.UpdateStatus(ctx, b.Number, model.BookingConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)

	got, err = c.UpdateStatus(ctx, b.Number, model.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, got.Status)

	_, err = c.UpdateStatus(ctx, b.Number, model.BookingCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = c.UpdateStatus(ctx, "TB-NOPE", model.BookingCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePropagatesStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := repomock.NewMockStore(ctrl)
	tx := repomock.NewMockTx(ctrl)
	ids, err := identity.New("test-salt", 8, nil)
	require.NoError(t, err)
	c := New(store, ids, zap.NewNop())
	ctx := context.Background()
	ref := model.BusinessRef("b")
	boom := errors.New("sequence unavailable")

	store.EXPECT().WithinTx(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context, repository.Tx) error) error {
			return fn(ctx, tx)
		})
	tx.EXPECT().GetSubject(ctx, ref).Return(&model.Subject{Ref: ref, Status: model.BusinessApproved}, nil)
	tx.EXPECT().NextBookingSequence(ctx).Return(int64(0), boom)

	_, err = c.Create(ctx, &model.Booking{UserID: "u1", Subject: ref, Guests: 1})
	assert.ErrorIs(t, err, boom)
}
