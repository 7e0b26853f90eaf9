// README: PostgreSQL recorder for ride-status transitions and driver
// earnings. The wider platform owns the schema; the core only appends.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pirideshare/internal/types"
)

type PGRecorder struct {
	db *pgxpool.Pool
}

func NewPGRecorder(db *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{db: db}
}

func (r *PGRecorder) RecordRideStatus(ctx context.Context, rideID types.ID, status Status, fields map[string]any) error {
	var payload []byte
	if fields != nil {
		var err error
		payload, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal status fields: %w", err)
		}
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO ride_status_events (ride_id, status, fields, created_at)
        VALUES ($1, $2, $3, $4)`,
		string(rideID), string(status), payload, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record ride status: %w", err)
	}
	return nil
}

func (r *PGRecorder) RecordEarnings(ctx context.Context, driverID, rideID types.ID, amount float64) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO driver_earnings (driver_id, ride_id, amount, created_at)
        VALUES ($1, $2, $3, $4)`,
		string(driverID), string(rideID), amount, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record earnings: %w", err)
	}
	return nil
}
