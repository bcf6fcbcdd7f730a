package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tourbook/listing/configs"
	"tourbook/listing/internal/repository"
	"tourbook/listing/pkg/model"
	"tourbook/pkg/logging"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const tracerID = "listing-repository-mysql"

// MySQL error numbers the repository translates.
const (
	errDuplicateEntry    = 1062
	errNoReferencedRow   = 1452
	errNoReferencedRowV2 = 1216
	errLockWaitTimeout   = 1205
	errLockDeadlock      = 1213
)

const reviewColumns = `id, reviewer_id, review_type, business_id, tourist_spot_id, event_id,
	rating, title, comment, is_approved, created_at, updated_at`

const bookingColumns = `id, booking_number, user_id, business_id, tourist_spot_id, event_id,
	status, guests, visit_date, notes, created_at, updated_at`

// Repository defines a MySQL-based entity store.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a new MySQL-based entity store.
func New(config configs.MysqlConfig, logger *zap.Logger) (*Repository, error) {
	logger = logger.With(
		zap.String(logging.FieldComponent, "repository"),
		zap.String(logging.FieldType, "mysql"),
	)
	cfg := mysql.NewConfig()
	cfg.User = config.User
	cfg.Passwd = config.Pass
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	cfg.DBName = config.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	logger.Info("Connecting to mysql", zap.String("addr", cfg.Addr))
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return &Repository{db: db, logger: logger}, nil
}

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Close closes the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// WithinTx runs fn in a serializable transaction.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/WithinTx")
	defer span.End()
	sqlTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(ctx, &tx{tx: sqlTx, logger: r.logger}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			r.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return transient(err)
	}
	return transient(sqlTx.Commit())
}

// transient marks deadlocks and lock wait timeouts with
// repository.ErrTransient.
func transient(err error) error {
	if err == nil || errors.Is(err, repository.ErrTransient) {
		return err
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errLockDeadlock || myErr.Number == errLockWaitTimeout) {
		return fmt.Errorf("%w: %w", repository.ErrTransient, err)
	}
	return err
}

type tx struct {
	tx     *sql.Tx
	logger *zap.Logger
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errNoReferencedRow, errNoReferencedRowV2:
			return fmt.Errorf("%w: %s", repository.ErrNotFound, myErr.Message)
		case errDuplicateEntry:
			return fmt.Errorf("%w: %s", repository.ErrConflict, myErr.Message)
		}
	}
	return err
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (*model.Review, error) {
	var (
		id, reviewer, kind, title, comment string
		business, spot, event              sql.NullString
		rating                             int
		approved                           bool
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(&id, &reviewer, &kind, &business, &spot, &event,
		&rating, &title, &comment, &approved, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec := repository.RecordFromColumns(id, reviewer, kind, nullable(business), nullable(spot), nullable(event))
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
	r, err := scanReview(t.tx.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id = ?", string(id)))
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
	query := "SELECT " + reviewColumns + " FROM reviews WHERE " + col + " = ?"
	if approvedOnly {
		query += " AND is_approved = TRUE"
	}
	query += " ORDER BY created_at DESC, id"
	rows, err := t.tx.QueryContext(ctx, query, string(ref.ID))
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
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			review_type = VALUES(review_type),
			business_id = VALUES(business_id),
			tourist_spot_id = VALUES(tourist_spot_id),
			event_id = VALUES(event_id),
			rating = VALUES(rating),
			title = VALUES(title),
			comment = VALUES(comment),
			is_approved = VALUES(is_approved),
			updated_at = VALUES(updated_at)`,
		string(review.ID), string(review.ReviewerID), string(review.Subject.Kind), business, spot, event,
		int(review.Rating), review.Title, review.Comment, review.IsApproved, review.CreatedAt, review.UpdatedAt)
	return translate(err)
}

func (t *tx) DeleteReview(ctx context.Context, id model.ReviewID) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/DeleteReview")
	defer span.End()
	res, err := t.tx.ExecContext(ctx, "DELETE FROM reviews WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func subjectSelect(kind model.Kind) (string, error) {
	table, ok := repository.SubjectTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown subject kind %q", kind)
	}
	times := "NULL, NULL"
	if kind == model.KindEvent {
		times = "starts_at, ends_at"
	}
	return "SELECT id, name, description, owner_id, status, " + times +
		", average_rating, review_count, created_at, updated_at FROM " + table, nil
}

func scanSubject(kind model.Kind, row scanner) (*model.Subject, error) {
	var (
		id, name, description, status string
		owner                         sql.NullString
		startsAt, endsAt              sql.NullTime
		avg                           sql.NullFloat64
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
		OwnerID:     model.UserID(owner.String),
		Status:      model.Status(status),
		Aggregate:   model.Aggregate{ReviewCount: count},
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if avg.Valid {
		v := avg.Float64
		s.Aggregate.AverageRating = &v
	}
	if startsAt.Valid {
		s.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		s.EndsAt = &endsAt.Time
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
	s, err := scanSubject(ref.Kind, t.tx.QueryRowContext(ctx, query+" WHERE id = ? FOR UPDATE", string(ref.ID)))
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
	avg := sql.NullFloat64{}
	if agg.AverageRating != nil {
		avg = sql.NullFloat64{Float64: *agg.AverageRating, Valid: true}
	}
	// MySQL reports zero affected rows when values are unchanged, so
	// existence is checked by LockSubject beforehand instead.
	_, err := t.tx.ExecContext(ctx, "UPDATE "+table+" SET average_rating = ?, review_count = ? WHERE id = ?",
		avg, agg.ReviewCount, string(ref.ID))
	return err
}

func (t *tx) PutSubject(ctx context.Context, subject *model.Subject) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/PutSubject")
	defer span.End()
	table, ok := repository.SubjectTables[subject.Ref.Kind]
	if !ok {
		return fmt.Errorf("unknown subject kind %q", subject.Ref.Kind)
	}
	owner := sql.NullString{String: string(subject.OwnerID), Valid: subject.OwnerID != ""}
	cols := []string{"id", "name", "description", "owner_id", "status", "created_at", "updated_at"}
	args := []any{string(subject.Ref.ID), subject.Name, subject.Description, owner, string(subject.Status),
		subject.CreatedAt, subject.UpdatedAt}
	if subject.Ref.Kind == model.KindEvent {
		cols = append(cols, "starts_at", "ends_at")
		args = append(args, subject.StartsAt, subject.EndsAt)
	}
	var updates []string
	for _, c := range cols {
		if c == "id" || c == "created_at" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "))
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *tx) GetSubject(ctx context.Context, ref model.SubjectRef) (*model.Subject, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/GetSubject")
	defer span.End()
	query, err := subjectSelect(ref.Kind)
	if err != nil {
		return nil, err
	}
	s, err := scanSubject(ref.Kind, t.tx.QueryRowContext(ctx, query+" WHERE id = ?", string(ref.ID)))
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
	if err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews WHERE "+repository.ReferenceColumns[ref.Kind]+" = ?",
		string(ref.ID)).Scan(&n); err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", string(ref.ID))
	if err != nil {
		return 0, err
	}
	if err := requireAffected(res); err != nil {
		return 0, err
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
	rows, err := t.tx.QueryContext(ctx, query+" ORDER BY id")
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
	res, err := t.tx.ExecContext(ctx, "INSERT INTO booking_sequence () VALUES ()")
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *tx) CreateBooking(ctx context.Context, b *model.Booking) error {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/CreateBooking")
	defer span.End()
	business, spot, event := repository.ReferenceArgs(b.Subject)
	_, err := t.tx.ExecContext(ctx, "INSERT INTO bookings ("+bookingColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		string(b.ID), string(b.Number), string(b.UserID), business, spot, event,
		string(b.Status), b.Guests, b.VisitDate, b.Notes, b.CreatedAt, b.UpdatedAt)
	return translate(err)
}

func (t *tx) GetBooking(ctx context.Context, number model.BookingNumber) (*model.Booking, error) {
	ctx, span := otel.Tracer(tracerID).Start(ctx, "Repository/GetBooking")
	defer span.End()
	var (
		id, num, user, status, notes string
		business, spot, event        sql.NullString
		guests                       int
		visit, createdAt, updatedAt  time.Time
	)
	err := t.tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE booking_number = ?", string(number)).
		Scan(&id, &num, &user, &business, &spot, &event, &status, &guests, &visit, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, translate(err)
	}
	ref, err := repository.RefFromColumns(nullable(business), nullable(spot), nullable(event))
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
	res, err := t.tx.ExecContext(ctx, "UPDATE bookings SET status = ?, updated_at = ? WHERE booking_number = ?",
		string(b.Status), b.UpdatedAt, string(b.Number))
	if err != nil {
		return err
	}
	return requireAffected(res)
}
