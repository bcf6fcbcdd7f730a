package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/listing/configs"
	"tourbook/listing/internal/repository"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const tracerID = "listing-repository-postgres"

// Postgres error codes the repository translates.
const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

const reviewColumns = `id, reviewer_id, review_type, business_id, tourist_spot_id, event_id,
	rating, title, comment, is_approved, created_at, updated_at`

const bookingColumns = `id, booking_number, user_id, business_id, tourist_spot_id, event_id,
	status, guests, visit_date, notes, created_at, updated_at`

// Repository defines a PostgreSQL-based entity store.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a pgx connection pool and verifies it with a ping.
func New(ctx context.Context, config configs.PostgresConfig, logger *zap.Logger) (*Repository, error) {
	logger = logger.With(
		zap.String(logging.FieldComponent, "repository"),
		zap.String(logging.FieldType, "postgres"),
	)
	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, err
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MaxIdleTime != "" {
		d, err := time.ParseDuration(config.MaxIdleTime)
		if err != nil {
			return nil, fmt.Errorf("parse max idle time: %w", err)
		}
		poolConfig.MaxConnIdleTime = d
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	logger.Info("Connecting to postgres", zap.String("host", poolConfig.ConnConfig.Host))
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repository{pool: pool, logger: logger}, nil
}

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// WithinTx runs fn in a serializable transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/WithinTx")
	defer span.End()
	pgTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err := pgTx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()
	if err := fn(ctx, &tx{tx: pgTx, logger: r.logger}); err != nil {
		return transient(err)
	}
	return transient(pgTx.Commit(ctx))
}

// transient marks serialization failures and deadlocks with
// repository.ErrTransient.
func transient(err error) error {
	if err == nil || errors.Is(err, repository.ErrTransient) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected) {
		return fmt.Errorf("%w: %w", repository.ErrTransient, err)
	}
	return err
}

type tx struct {
	tx     pgx.Tx
	logger *zap.Logger
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", repository.ErrNotFound, pgErr.ConstraintName)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

func scanReview(row pgx.Row) (*model.Review, error) {
	var (
		id, reviewer, kind, title, comment string
		business, spot, event              *string
		rating                             int
		approved                           bool
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(&id, &reviewer, &kind, &business, &spot, &event,
		&rating, &title, &comment, &approved, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec := repository.RecordFromColumns(id, reviewer, kind, business, spot, event)
	rec.Rating = rating
	rec.Title = title
	rec.Comment = comment
	rec.IsApproved = approved
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return model.ReviewFromRecord(rec)
}

func (t *tx) GetReview(ctx context.Context, id model.ReviewID) (*model.Review, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/GetReview")
	defer span.End()
	row := t.tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, string(id))
	r, err := scanReview(row)
	if err != nil {
		return nil, translate(err)
	}
	return r, nil
}

func (t *tx) ListApprovedReviews(ctx context.Context, ref model.SubjectRef) ([]model.Review, error) {
	return t.ListReviews(ctx, ref, true)
}

func (t *tx) ListReviews(ctx context.Context, ref model.SubjectRef, approvedOnly bool) ([]model.Review, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/ListReviews")
	defer span.End()
	col, ok := repository.ReferenceColumns[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown subject kind %q", ref.Kind)
	}
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE ` + col + ` = $1`
	if approvedOnly {
		query += ` AND is_approved`
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := t.tx.Query(ctx, query, string(ref.ID))
	if err != nil {
		t.logger.Warn("Failed to list reviews", zap.Stringer(logging.FieldSubject, ref), zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	var res []model.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

func (t *tx) UpsertReview(ctx context.Context, review *model.Review) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/UpsertReview")
	defer span.End()
	business, spot, event := repository.ReferenceArgs(review.Subject)
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			review_type = EXCLUDED.review_type,
			business_id = EXCLUDED.business_id,
			tourist_spot_id = EXCLUDED.tourist_spot_id,
			event_id = EXCLUDED.event_id,
			rating = EXCLUDED.rating,
			title = EXCLUDED.title,
			comment = EXCLUDED.comment,
			is_approved = EXCLUDED.is_approved,
			updated_at = EXCLUDED.updated_at`,
		string(review.ID), string(review.ReviewerID), string(review.Subject.Kind), business, spot, event,
		int(review.Rating), review.Title, review.Comment, review.IsApproved, review.CreatedAt, review.UpdatedAt)
	return translate(err)
}

func (t *tx) DeleteReview(ctx context.Context, id model.ReviewID) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/DeleteReview")
	defer span.End()
	tag, err := t.tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func subjectSelect(kind model.Kind) (string, error) {
	table, ok := repository.SubjectTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown subject kind %q", kind)
	}
	times := "NULL::timestamptz, NULL::timestamptz"
	if kind == model.KindEvent {
		times = "starts_at, ends_at"
	}
	return `SELECT id, name, description, owner_id, status, ` + times + `,
		average_rating::float8, review_count, created_at, updated_at FROM ` + table, nil
}

func scanSubject(kind model.Kind, row pgx.Row) (*model.Subject, error) {
	var (
		id, name, description, status string
		owner                         *string
		startsAt, endsAt              *time.Time
		avg                           *float64
		count                         int
		createdAt, updatedAt          time.Time
	)
	if err := row.Scan(&id, &name, &description, &owner, &status, &startsAt, &endsAt,
		&avg, &count, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s := &model.Subject{
		Ref:         model.SubjectRef{Kind: kind, ID: model.SubjectID(id)},
		Name:        name,
		Description: description,
		Status:      model.Status(status),
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Aggregate:   model.Aggregate{AverageRating: avg, ReviewCount: count},
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if owner != nil {
		s.OwnerID = model.UserID(*owner)
	}
	return s, nil
}

func (t *tx) LockSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/LockSubject")
	defer span.End()
	query, err := subjectSelect(ref.Kind)
	if err != nil {
		return nil, err
	}
	s, err := scanSubject(ref.Kind, t.tx.QueryRow(ctx, query+` WHERE id = $1 FOR UPDATE`, string(ref.ID)))
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

func (t *tx) UpdateAggregate(ctx context.Context, ref model.SubjectRef, agg model.Aggregate) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/UpdateAggregate")
	defer span.End()
	table, ok := repository.SubjectTables[ref.Kind]
	if !ok {
		return fmt.Errorf("unknown subject kind %q", ref.Kind)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE `+table+` SET average_rating = $2::float8, review_count = $3 WHERE id = $1`,
		string(ref.ID), agg.AverageRating, agg.ReviewCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *tx) PutSubject(ctx context.Context, subject *model.Subject) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/PutSubject")
	defer span.End()
	table, ok := repository.SubjectTables[subject.Ref.Kind]
	if !ok {
		return fmt.Errorf("unknown subject kind %q", subject.Ref.Kind)
	}
	var owner *string
	if subject.OwnerID != "" {
		o := string(subject.OwnerID)
		owner = &o
	}
	args := []any{string(subject.Ref.ID), subject.Name, subject.Description, owner, string(subject.Status),
		subject.CreatedAt, subject.UpdatedAt}
	cols := "id, name, description, owner_id, status, created_at, updated_at"
	vals := "$1, $2, $3, $4, $5, $6, $7"
	set := `name = EXCLUDED.name, description = EXCLUDED.description, owner_id = EXCLUDED.owner_id,
		status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if subject.Ref.Kind == model.KindEvent {
		args = append(args, subject.StartsAt, subject.EndsAt)
		cols += ", starts_at, ends_at"
		vals += ", $8, $9"
		set += ", starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at"
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO `+table+` (`+cols+`) VALUES (`+vals+`)
		ON CONFLICT (id) DO UPDATE SET `+set, args...)
	return err
}

func (t *tx) GetSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/GetSubject")
	defer span.End()
	query, err := subjectSelect(ref.Kind)
	if err != nil {
		return nil, err
	}
	s, err := scanSubject(ref.Kind, t.tx.QueryRow(ctx, query+` WHERE id = $1`, string(ref.ID)))
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

func (t *tx) DeleteSubject(ctx context.Context, ref model.SubjectRef) (int, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/DeleteSubject")
	defer span.End()
	table, ok := repository.SubjectTables[ref.Kind]
	if !ok {
		return 0, fmt.Errorf("unknown subject kind %q", ref.Kind)
	}
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT count(*) FROM reviews WHERE `+repository.ReferenceColumns[ref.Kind]+` = $1`,
		string(ref.ID)).Scan(&n); err != nil {
		return 0, err
	}
	// Reviews and bookings go with the subject through ON DELETE CASCADE.
	tag, err := t.tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, string(ref.ID))
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, repository.ErrNotFound
	}
	return n, nil
}

func (t *tx) ListSubjects(ctx context.Context, kind model.Kind) ([]model.Subject, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/ListSubjects")
	defer span.End()
	query, err := subjectSelect(kind)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, query+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Subject
	for rows.Next() {
		s, err := scanSubject(kind, rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

func (t *tx) NextBookingSequence(ctx context.Context) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `SELECT nextval('booking_number_seq')`).Scan(&n)
	return n, err
}

func (t *tx) CreateBooking(ctx context.Context, b *model.Booking) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/CreateBooking")
	defer span.End()
	business, spot, event := repository.ReferenceArgs(b.Subject)
	_, err := t.tx.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(b.ID), string(b.Number), string(b.UserID), business, spot, event,
		string(b.Status), b.Guests, b.VisitDate, b.Notes, b.CreatedAt, b.UpdatedAt)
	return translate(err)
}

func (t *tx) GetBooking(ctx context.Context, number model.BookingNumber) (*model.Booking, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/GetBooking")
	defer span.End()
	var (
		id, num, user, status, notes string
		business, spot, event        *string
		guests                       int
		visit, createdAt, updatedAt  time.Time
	)
	err := t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_number = $1`, string(number)).
		Scan(&id, &num, &user, &business, &spot, &event, &status, &guests, &visit, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, translate(err)
	}
	ref, err := repository.RefFromColumns(business, spot, event)
	if err != nil {
		return nil, err
	}
	return &model.Booking{
		ID:        model.BookingID(id),
		Number:    model.BookingNumber(num),
		UserID:    model.UserID(user),
		Subject:   ref,
		Status:    model.BookingStatus(status),
		Guests:    guests,
		VisitDate: visit,
		Notes:     notes,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (t *tx) UpdateBookingStatus(ctx context.Context, b *model.Booking) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/UpdateBookingStatus")
	defer span.End()
	tag, err := t.tx.Exec(ctx, `UPDATE bookings SET status = $2, updated_at = $3 WHERE booking_number = $1`,
		string(b.Number), string(b.Status), b.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
