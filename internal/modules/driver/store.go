// README: Driver store contract plus the PostgreSQL implementation.
package driver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swiftcab/internal/types"
)

var (
	ErrNotFound = errors.New("driver not found")
)

// Store is the durable driver record. UpdateStatus is a compare-and-swap on
// (status, status_version), mirroring the booking store.
type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	ListByStatus(ctx context.Context, st Status) ([]Driver, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	CabTypes(ctx context.Context) (map[types.ID]CabType, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const driverColumns = `
        id, name, phone, status, status_version,
        vehicle_type_id, vehicle_type_name, vehicle_reg, vehicle_model`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT`+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *PGStore) ListByStatus(ctx context.Context, st Status) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT`+driverColumns+` FROM drivers WHERE status = $1`, string(st))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE drivers
        SET status = $1,
            status_version = status_version + 1
        WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) CabTypes(ctx context.Context) (map[types.ID]CabType, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, capacity, base_fare, currency FROM cab_types`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]CabType)
	for rows.Next() {
		var ct CabType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Capacity, &ct.BaseFare.Amount, &ct.BaseFare.Currency); err != nil {
			return nil, err
		}
		out[ct.ID] = ct
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (*Driver, error) {
	var d Driver
	var typeID sql.NullString
	err := row.Scan(
		&d.ID, &d.Name, &d.Phone, &d.Status, &d.StatusVersion,
		&typeID, &d.VehicleTypeName, &d.VehicleReg, &d.VehicleModel,
	)
	if err != nil {
		return nil, err
	}
	if typeID.Valid {
		id := types.ID(typeID.String)
		d.VehicleTypeID = &id
	}
	return &d, nil
}
