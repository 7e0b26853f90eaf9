// README: Rate store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRateNotFound = errors.New("rate not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, vehicleClass string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
        SELECT vehicle_class, base_fare, per_mile, per_minute
        FROM vehicle_rates
        WHERE vehicle_class = $1`, vehicleClass,
	)
	var r Rate
	err := row.Scan(&r.VehicleClass, &r.Base, &r.PerMile, &r.PerMinute)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, fmt.Errorf("get rate %s: %w", vehicleClass, err)
	}
	return r, nil
}
