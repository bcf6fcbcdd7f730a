package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"tourbook/listing/internal/auth"
	cachememory "tourbook/listing/internal/cache/memory"
	"tourbook/listing/internal/repository"
	"tourbook/listing/internal/repository/memory"
	"tourbook/listing/pkg/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v6"
	"go.uber.org/zap"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	repo  *memory.Repository
	cache *cachememory.Cache
	scope tally.TestScope
	c     *Controller
	seq   int
}

func newFixture(t *testing.T, subjects ...model.SubjectRef) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		repo:  memory.New(zap.NewNop()),
		cache: cachememory.New(0),
		scope: tally.NewTestScope("", nil),
	}
	f.c = New(f.repo, f.cache, fixedIDs{}, f.scope, zap.NewNop())
	require.NoError(t, f.repo.WithinTx(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, ref := range subjects {
			if err := tx.PutSubject(ctx, &model.Subject{Ref: ref, Name: string(ref.ID), Status: model.DefaultStatus(ref.Kind)}); err != nil {
				return err
			}
		}
		return nil
	}))
	return f
}

func record(ref model.SubjectRef, rating int, approved bool) *model.ReviewRecord {
	r := &model.Review{ReviewerID: "u1", Subject: ref, Rating: model.RatingValue(rating), IsApproved: approved}
	return r.Record()
}

func (f *fixture) create(ref model.SubjectRef, rating int, approved bool) model.ReviewID {
	f.t.Helper()
	f.seq++
	rec := record(ref, rating, approved)
	rec.ID = model.ReviewID(fmt.Sprintf("r%d", f.seq))
	r, err := f.c.CreateReview(f.ctx, rec, auth.System)
	require.NoError(f.t, err)
	return r.ID
}

func (f *fixture) stored(ref model.SubjectRef) model.Aggregate {
	f.t.Helper()
	var agg model.Aggregate
	require.NoError(f.t, f.repo.WithinTx(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		s, err := tx.GetSubject(ctx, ref)
		if err != nil {
			return err
		}
		agg = s.Aggregate
		return nil
	}))
	return agg
}

func (f *fixture) assertAggregate(ref model.SubjectRef, avg float64, count int) {
	f.t.Helper()
	agg := f.stored(ref)
	assert.Equal(f.t, count, agg.ReviewCount, "count of %s", ref)
	if count == 0 {
		assert.Nil(f.t, agg.AverageRating, "average of %s", ref)
		return
	}
	if assert.NotNil(f.t, agg.AverageRating, "average of %s", ref) {
		assert.Equal(f.t, avg, *agg.AverageRating, "average of %s", ref)
	}
}

func (f *fixture) counter(name string) int64 {
	for _, c := range f.scope.Snapshot().Counters() {
		if c.Name() == name {
			return c.Value()
		}
	}
	return 0
}

func TestReviewLifecycleMaintainsAggregate(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	f.assertAggregate(b, 0, 0)

	first := f.create(b, 4, true)
	f.assertAggregate(b, 4.00, 1)

	f.create(b, 5, true)
	f.assertAggregate(b, 4.50, 2)

	pending := f.create(b, 1, false)
	f.assertAggregate(b, 4.50, 2)

	_, err := f.c.SetApproval(f.ctx, pending, true, auth.System)
	require.NoError(t, err)
	f.assertAggregate(b, 3.33, 3)

	require.NoError(t, f.c.DeleteReview(f.ctx, first, auth.System))
	f.assertAggregate(b, 3.00, 2)

	_, err = f.c.SetApproval(f.ctx, pending, false, auth.System)
	require.NoError(t, err)
	f.assertAggregate(b, 5.00, 1)
}

func TestTwoReviewScenarioPerKind(t *testing.T) {
	for _, ref := range []model.SubjectRef{
		model.BusinessRef("B"),
		model.TouristSpotRef("T"),
		model.EventRef("E"),
	} {
		t.Run(string(ref.Kind), func(t *testing.T) {
			f := newFixture(t, ref)
			f.assertAggregate(ref, 0, 0)

			first := f.create(ref, 5, true)
			f.assertAggregate(ref, 5.00, 1)

			second := f.create(ref, 3, true)
			f.assertAggregate(ref, 4.00, 2)

			_, err := f.c.SetApproval(f.ctx, first, false, auth.System)
			require.NoError(t, err)
			f.assertAggregate(ref, 3.00, 1)

			require.NoError(t, f.c.DeleteReview(f.ctx, second, auth.System))
			f.assertAggregate(ref, 0, 0)
		})
	}
}

func TestTouristSpotAverageRounding(t *testing.T) {
	ts := model.TouristSpotRef("T")
	f := newFixture(t, ts)
	f.create(ts, 5, true)
	f.create(ts, 4, true)
	f.create(ts, 4, true)
	f.assertAggregate(ts, 4.33, 3)

	f.create(ts, 5, true)
	f.create(ts, 5, true)
	f.create(ts, 4, true)
	f.assertAggregate(ts, 4.50, 6)
}

func TestDeletingLastApprovedReviewClearsAverage(t *testing.T) {
	e := model.EventRef("E")
	f := newFixture(t, e)
	id := f.create(e, 3, true)
	f.create(e, 2, false)
	f.assertAggregate(e, 3.00, 1)

	require.NoError(t, f.c.DeleteReview(f.ctx, id, auth.System))
	f.assertAggregate(e, 0, 0)
}

func TestInvalidReviewsAreRejectedWithoutWrites(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	f.create(b, 4, true)
	e := model.SubjectID("E")

	both := record(b, 5, true)
	both.EventID = &e
	mismatch := record(b, 5, true)
	mismatch.Kind = model.KindEvent
	none := record(b, 5, true)
	none.BusinessID = nil

	tests := []struct {
		name    string
		rec     *model.ReviewRecord
		wantErr error
	}{
		{"two references", both, model.ErrMultipleOrNoSubject},
		{"no reference", none, model.ErrMultipleOrNoSubject},
		{"kind mismatch", mismatch, model.ErrKindMismatch},
		{"rating zero", record(b, 0, true), model.ErrInvalidRating},
		{"rating six", record(b, 6, true), model.ErrInvalidRating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.c.CreateReview(f.ctx, tt.rec, auth.System)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, model.ErrValidation)
			f.assertAggregate(b, 4.00, 1)
			reviews, err := f.c.ListReviews(f.ctx, b, false)
			require.NoError(t, err)
			assert.Len(t, reviews, 1)
		})
	}
}

func TestCreateReviewForMissingSubject(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.CreateReview(f.ctx, record(model.EventRef("nope"), 3, true), auth.System)
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestCreateReviewDuplicateID(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	id := f.create(b, 4, true)
	rec := record(b, 1, true)
	rec.ID = id
	_, err := f.c.CreateReview(f.ctx, rec, auth.System)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	f.assertAggregate(b, 4.00, 1)
}

func TestUpdateReviewMovesBetweenSubjects(t *testing.T) {
	b := model.BusinessRef("B")
	ts := model.TouristSpotRef("T")
	f := newFixture(t, b, ts)
	id := f.create(b, 2, true)
	f.create(b, 4, true)
	f.assertAggregate(b, 3.00, 2)

	rec := record(ts, 5, true)
	rec.ID = id
	updated, err := f.c.UpdateReview(f.ctx, rec, auth.System)
	require.NoError(t, err)
	assert.Equal(t, ts, updated.Subject)
	f.assertAggregate(b, 4.00, 1)
	f.assertAggregate(ts, 5.00, 1)
}

func TestUpdateReviewMissing(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	rec := record(b, 3, false)
	rec.ID = "missing"
	_, err := f.c.UpdateReview(f.ctx, rec, auth.System)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewerCannotApprove(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	tourist := auth.Policy(model.Principal{UserID: "u1", Role: model.RoleTourist})

	_, err := f.c.CreateReview(f.ctx, record(b, 5, true), tourist)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	f.assertAggregate(b, 0, 0)

	created, err := f.c.CreateReview(f.ctx, record(b, 5, false), tourist)
	require.NoError(t, err)

	rec := created.Record()
	rec.IsApproved = true
	_, err = f.c.UpdateReview(f.ctx, rec, tourist)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.c.SetApproval(f.ctx, created.ID, true, tourist)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	f.assertAggregate(b, 0, 0)

	rec.IsApproved = false
	rec.Rating = 2
	_, err = f.c.UpdateReview(f.ctx, rec, tourist)
	assert.NoError(t, err)

	other := auth.Policy(model.Principal{UserID: "u2", Role: model.RoleTourist})
	assert.ErrorIs(t, f.c.DeleteReview(f.ctx, created.ID, other), auth.ErrForbidden)
	assert.NoError(t, f.c.DeleteReview(f.ctx, created.ID, tourist))
}

func TestReviewerEditReturnsReviewToModeration(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	tourist := auth.Policy(model.Principal{UserID: "u1", Role: model.RoleTourist})
	staff := auth.Policy(model.Principal{UserID: "s1", Role: model.RoleStaff})

	created, err := f.c.CreateReview(f.ctx, record(b, 5, false), tourist)
	require.NoError(t, err)
	_, err = f.c.SetApproval(f.ctx, created.ID, true, staff)
	require.NoError(t, err)
	f.assertAggregate(b, 5.00, 1)

	rec := created.Record()
	rec.Rating = 1
	rec.IsApproved = true
	edited, err := f.c.UpdateReview(f.ctx, rec, tourist)
	require.NoError(t, err)
	assert.False(t, edited.IsApproved)
	f.assertAggregate(b, 0, 0)

	_, err = f.c.SetApproval(f.ctx, created.ID, true, staff)
	require.NoError(t, err)
	rec.Rating = 2
	edited, err = f.c.UpdateReview(f.ctx, rec, staff)
	require.NoError(t, err)
	assert.True(t, edited.IsApproved)
	f.assertAggregate(b, 2.00, 1)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ts := model.TouristSpotRef("T")
	f := newFixture(t, ts)
	f.create(ts, 5, true)
	f.create(ts, 2, true)
	f.create(ts, 3, false)
	before := f.stored(ts)
	for i := 0; i < 3; i++ {
		agg, err := f.c.Recompute(f.ctx, ts, auth.System)
		require.NoError(t, err)
		assert.True(t, before.Equal(*agg), "recompute %d changed %v to %v", i, before, agg)
	}
	assert.True(t, before.Equal(f.stored(ts)))
}

func TestRecomputeDanglingReference(t *testing.T) {
	f := newFixture(t)
	agg, err := f.c.Recompute(f.ctx, model.BusinessRef("ghost"), auth.System)
	assert.NoError(t, err)
	assert.Nil(t, agg)
	assert.Equal(t, int64(1), f.counter("aggregate.dangling_references"))
}

func TestReconcileCorrectsDrift(t *testing.T) {
	b := model.BusinessRef("B")
	e := model.EventRef("E")
	f := newFixture(t, b, e)
	f.create(b, 4, true)
	f.create(e, 2, true)

	wrong := 1.0
	require.NoError(t, f.repo.WithinTx(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.UpdateAggregate(ctx, b, model.Aggregate{AverageRating: &wrong, ReviewCount: 7})
	}))

	res, err := f.c.Reconcile(f.ctx, "", auth.System)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 2, Corrected: 1}, res)
	f.assertAggregate(b, 4.00, 1)

	res, err = f.c.Reconcile(f.ctx, model.KindEvent, auth.System)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Checked: 1}, res)

	_, err = f.c.Reconcile(f.ctx, model.Kind("castle"), auth.System)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAggregateCacheFollowsWrites(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	agg, err := f.c.GetAggregate(f.ctx, b)
	require.NoError(t, err)
	assert.Nil(t, agg.AverageRating)

	f.create(b, 5, true)
	agg, err = f.c.GetAggregate(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.ReviewCount)
	assert.Equal(t, 5.0, *agg.AverageRating)
}

// racingCache commits a write between the store read of a cache miss
// and the fill that follows it.
type racingCache struct {
	*cachememory.Cache
	beforeFill func()
}

func (c *racingCache) Fill(ctx context.Context, ref model.SubjectRef, agg model.Aggregate, version int64) (bool, error) {
	if c.beforeFill != nil {
		hook := c.beforeFill
		c.beforeFill = nil
		hook()
	}
	return c.Cache.Fill(ctx, ref, agg, version)
}

func TestAggregateCacheMissDoesNotOverwriteNewerWrite(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	rc := &racingCache{Cache: f.cache}
	f.c = New(f.repo, rc, fixedIDs{}, f.scope, zap.NewNop())
	rc.beforeFill = func() { f.create(b, 5, true) }

	stale, err := f.c.GetAggregate(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 0, stale.ReviewCount)

	agg, err := f.c.GetAggregate(f.ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.ReviewCount)
	if assert.NotNil(t, agg.AverageRating) {
		assert.Equal(t, 5.0, *agg.AverageRating)
	}
}

func TestAggregateCacheMissDoesNotResurrectDeletedSubject(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	rc := &racingCache{Cache: f.cache}
	f.c = New(f.repo, rc, fixedIDs{}, f.scope, zap.NewNop())
	rc.beforeFill = func() {
		require.NoError(t, f.repo.WithinTx(f.ctx, func(ctx context.Context, tx repository.Tx) error {
			_, err := tx.DeleteSubject(ctx, b)
			return err
		}))
		require.NoError(t, f.cache.Invalidate(f.ctx, b))
	}

	_, err := f.c.GetAggregate(f.ctx, b)
	require.NoError(t, err)
	_, err = f.c.GetAggregate(f.ctx, b)
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestApplyModeration(t *testing.T) {
	b := model.BusinessRef("B")
	f := newFixture(t, b)
	id := f.create(b, 3, false)

	require.NoError(t, f.c.ApplyModeration(f.ctx, &model.ModerationEvent{ReviewID: id, Action: model.ModerationApprove}))
	f.assertAggregate(b, 3.00, 1)
	require.NoError(t, f.c.ApplyModeration(f.ctx, &model.ModerationEvent{ReviewID: id, Action: model.ModerationReject}))
	f.assertAggregate(b, 0, 0)
	require.NoError(t, f.c.ApplyModeration(f.ctx, &model.ModerationEvent{ReviewID: id, Action: model.ModerationDelete}))
	require.NoError(t, f.c.ApplyModeration(f.ctx, &model.ModerationEvent{ReviewID: id, Action: model.ModerationApprove}))
}

type chanIngester chan model.ModerationEvent

func (c chanIngester) Ingest(context.Context) (chan model.ModerationEvent, error) {
	return c, nil
}

// flakyStore aborts the first failures transactions as transient.
type flakyStore struct {
	repository.Store
	failures int
	err      error
}

func (s *flakyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s.failures > 0 {
		s.failures--
		return s.err
	}
	return s.Store.WithinTx(ctx, fn)
}

func TestStartIngestionRetriesTransientFailures(t *testing.T) {
	e := model.EventRef("E")
	f := newFixture(t, e)
	a := f.create(e, 5, false)
	b := f.create(e, 3, false)

	store := &flakyStore{Store: f.repo, failures: 2, err: fmt.Errorf("%w: could not serialize access", repository.ErrTransient)}
	f.c = New(store, f.cache, fixedIDs{}, f.scope, zap.NewNop())
	f.c.retryBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	ch := make(chanIngester, 2)
	ch <- model.ModerationEvent{ReviewID: a, Action: model.ModerationApprove, ModeratorID: "s1"}
	ch <- model.ModerationEvent{ReviewID: b, Action: model.ModerationApprove, ModeratorID: "s1"}
	close(ch)

	require.NoError(t, f.c.StartIngestion(f.ctx, ch))
	f.assertAggregate(e, 4.00, 2)
	assert.Len(t, ch, 0)
}

func TestStartIngestionSkipsFailingEvent(t *testing.T) {
	e := model.EventRef("E")
	f := newFixture(t, e)
	a := f.create(e, 5, false)
	b := f.create(e, 3, false)

	store := &flakyStore{Store: f.repo, failures: 1, err: errors.New("disk full")}
	f.c = New(store, f.cache, fixedIDs{}, f.scope, zap.NewNop())
	f.c.retryBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	ch := make(chanIngester, 2)
	ch <- model.ModerationEvent{ReviewID: a, Action: model.ModerationApprove, ModeratorID: "s1"}
	ch <- model.ModerationEvent{ReviewID: b, Action: model.ModerationApprove, ModeratorID: "s1"}
	close(ch)

	require.NoError(t, f.c.StartIngestion(f.ctx, ch))
	f.assertAggregate(e, 3.00, 1)
}

func TestStartIngestion(t *testing.T) {
	e := model.EventRef("E")
	f := newFixture(t, e)
	a := f.create(e, 5, false)
	b := f.create(e, 4, false)

	ch := make(chanIngester, 3)
	ch <- model.ModerationEvent{ReviewID: a, Action: model.ModerationApprove, ModeratorID: "s1"}
	ch <- model.ModerationEvent{ReviewID: b, Action: model.ModerationApprove, ModeratorID: "s1"}
	ch <- model.ModerationEvent{ReviewID: "gone", Action: model.ModerationDelete, ModeratorID: "s1"}
	close(ch)

	require.NoError(t, f.c.StartIngestion(f.ctx, ch))
	f.assertAggregate(e, 4.50, 2)
}

// truth recomputes the expected aggregate with floating point rounding,
// independent of the integer arithmetic used by the controller.
func truth(reviews map[model.ReviewID]model.Review, ref model.SubjectRef) (float64, int) {
	sum, n := 0, 0
	for _, r := range reviews {
		if r.Subject == ref && r.IsApproved {
			sum += int(r.Rating)
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return math.Round(float64(sum)*100/float64(n)) / 100, n
}

func TestRandomMutationsKeepAggregatesExact(t *testing.T) {
	subjects := []model.SubjectRef{
		model.BusinessRef("B1"), model.BusinessRef("B2"),
		model.TouristSpotRef("T1"), model.EventRef("E1"),
	}
	f := newFixture(t, subjects...)
	rnd := rand.New(rand.NewSource(7))
	live := map[model.ReviewID]model.Review{}
	var ids []model.ReviewID

	pick := func() (model.ReviewID, bool) {
		for len(ids) > 0 {
			i := rnd.Intn(len(ids))
			if _, ok := live[ids[i]]; ok {
				return ids[i], true
			}
			ids = append(ids[:i], ids[i+1:]...)
		}
		return "", false
	}

	for step := 0; step < 400; step++ {
		switch op := rnd.Intn(10); {
		case op < 4:
			ref := subjects[rnd.Intn(len(subjects))]
			id := f.create(ref, 1+rnd.Intn(5), rnd.Intn(2) == 0)
			r, err := f.c.GetReview(f.ctx, id)
			require.NoError(t, err)
			live[id] = *r
			ids = append(ids, id)
		case op < 6:
			id, ok := pick()
			if !ok {
				continue
			}
			r, err := f.c.SetApproval(f.ctx, id, !live[id].IsApproved, auth.System)
			require.NoError(t, err)
			live[id] = *r
		case op < 8:
			id, ok := pick()
			if !ok {
				continue
			}
			current := live[id]
			rec := current.Record()
			rec.Rating = 1 + rnd.Intn(5)
			if rnd.Intn(3) == 0 {
				moved := &model.Review{ID: id, Subject: subjects[rnd.Intn(len(subjects))], Rating: model.RatingValue(rec.Rating), IsApproved: rec.IsApproved}
				rec = moved.Record()
			}
			r, err := f.c.UpdateReview(f.ctx, rec, auth.System)
			require.NoError(t, err)
			live[id] = *r
		default:
			id, ok := pick()
			if !ok {
				continue
			}
			require.NoError(t, f.c.DeleteReview(f.ctx, id, auth.System))
			delete(live, id)
		}

		for _, ref := range subjects {
			avg, n := truth(live, ref)
			f.assertAggregate(ref, avg, n)
		}
	}
}
