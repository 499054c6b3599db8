// README: Booking store contract plus the PostgreSQL implementation.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swiftcab/internal/types"
)

// DriverPatch describes how UpdateStatus should touch the driver binding.
// The zero value leaves it untouched.
type DriverPatch struct {
	set bool
	id  *types.ID
}

func KeepDriver() DriverPatch { return DriverPatch{} }

func BindDriver(id types.ID) DriverPatch { return DriverPatch{set: true, id: &id} }

func ClearDriver() DriverPatch { return DriverPatch{set: true} }

// UpdateStatusArgs is a compare-and-swap status write: it applies only when
// the stored status and version still match From/Version.
type UpdateStatusArgs struct {
	ID      types.ID
	From    Status
	To      Status
	Version int
	Driver  DriverPatch
	Reason  *string
}

// Store is the durable booking record. It is the only component that applies
// the compare-and-swap write for status/driver fields.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	GetByTrackingCode(ctx context.Context, code string) (*Booking, error)
	UpdateStatus(ctx context.Context, args UpdateStatusArgs) (bool, error)
	SetPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) error
	SetRefundStatus(ctx context.Context, id types.ID, rs RefundStatus) error
	SetRating(ctx context.Context, id types.ID, rater Role, r Rating) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO bookings (
            id, tracking_code, user_id, pickup_loc, drop_loc,
            cab_type_id, cab_type_name, pickup_time,
            status, status_version, driver_id,
            total_amount, currency, payment_status, refund_status, created_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11,
            $12, $13, $14, $15, $16
        )`,
		string(b.ID),
		b.TrackingCode,
		string(b.UserID),
		b.PickupLoc, b.DropLoc,
		string(b.CabTypeID), b.CabTypeName,
		b.PickupTime,
		string(b.Status),
		b.StatusVersion,
		idToStringPtr(b.DriverID),
		b.TotalAmount.Amount, b.TotalAmount.Currency,
		string(b.PaymentStatus),
		string(b.RefundStatus),
		b.CreatedAt,
	)
	return err
}

const bookingColumns = `
        id, tracking_code, user_id, pickup_loc, drop_loc,
        cab_type_id, cab_type_name, pickup_time,
        status, status_version, driver_id,
        total_amount, currency, payment_status, refund_status,
        user_rating, user_comment, driver_rating, driver_comment,
        created_at, completed_at, cancelled_at, cancellation_reason`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	return scanBooking(row)
}

func (s *PGStore) GetByTrackingCode(ctx context.Context, code string) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE tracking_code = $1`, code)
	return scanBooking(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var driverID, cancelReason sql.NullString
	var userScore, driverScore sql.NullInt64
	var userComment, driverComment sql.NullString
	var completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.TrackingCode, &b.UserID, &b.PickupLoc, &b.DropLoc,
		&b.CabTypeID, &b.CabTypeName, &b.PickupTime,
		&b.Status, &b.StatusVersion, &driverID,
		&b.TotalAmount.Amount, &b.TotalAmount.Currency, &b.PaymentStatus, &b.RefundStatus,
		&userScore, &userComment, &driverScore, &driverComment,
		&b.CreatedAt, &completedAt, &cancelledAt, &cancelReason,
	)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		b.DriverID = &d
	}
	if userScore.Valid {
		b.UserRating = &Rating{Score: int(userScore.Int64), Comment: userComment.String}
	}
	if driverScore.Valid {
		b.DriverRating = &Rating{Score: int(driverScore.Int64), Comment: driverComment.String}
	}
	b.CompletedAt = nullTimePtr(completedAt)
	b.CancelledAt = nullTimePtr(cancelledAt)
	if cancelReason.Valid {
		b.CancelReason = &cancelReason.String
	}
	return &b, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, args UpdateStatusArgs) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET status = $1,
            status_version = status_version + 1,
            driver_id = CASE WHEN $2 THEN $3 ELSE driver_id END,
            completed_at = CASE WHEN $1 = 'completed' THEN COALESCE(completed_at, NOW()) ELSE NULL END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN COALESCE(cancelled_at, NOW()) ELSE NULL END,
            cancellation_reason = COALESCE($4, cancellation_reason)
        WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(args.To),
		args.Driver.set,
		idToStringPtr(args.Driver.id),
		args.Reason,
		string(args.ID),
		string(args.From),
		args.Version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE bookings SET payment_status = $1 WHERE id = $2`,
		string(ps), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetRefundStatus(ctx context.Context, id types.ID, rs RefundStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE bookings SET refund_status = $1 WHERE id = $2`,
		string(rs), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetRating(ctx context.Context, id types.ID, rater Role, r Rating) error {
	var query string
	switch rater {
	case RoleUser:
		query = `UPDATE bookings SET user_rating = $1, user_comment = $2 WHERE id = $3 AND user_rating IS NULL`
	case RoleDriver:
		query = `UPDATE bookings SET driver_rating = $1, driver_comment = $2 WHERE id = $3 AND driver_rating IS NULL`
	default:
		return ErrBadRequest
	}
	tag, err := s.db.Exec(ctx, query, r.Score, r.Comment, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	return nil
}

func idToStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
