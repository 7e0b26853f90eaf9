// README: Surge configuration store backed by PostgreSQL. Zones, time rules,
// and the flat knob table are edited by the admin surface; this module only
// reads them.
package surge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// LoadSnapshot reads the full surge configuration. Knobs missing from the
// table keep their defaults.
func (s *Store) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Config: DefaultAlgorithmConfig()}

	rows, err := s.db.Query(ctx, `
        SELECT id, center_lat, center_lng, radius_km, tier_level, base_multiplier, zone_type,
               override_multiplier, override_reason, override_expires_at
        FROM surge_zones`)
	if err != nil {
		return nil, fmt.Errorf("load surge zones: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var z Zone
		var overrideMult sql.NullFloat64
		var overrideReason sql.NullString
		var overrideExpires sql.NullTime
		if err := rows.Scan(
			&z.ID, &z.Center.Lat, &z.Center.Lng, &z.RadiusKm, &z.TierLevel, &z.BaseMultiplier, &z.Type,
			&overrideMult, &overrideReason, &overrideExpires,
		); err != nil {
			return nil, fmt.Errorf("scan surge zone: %w", err)
		}
		if overrideMult.Valid && overrideExpires.Valid {
			z.Override = &Override{
				Multiplier: overrideMult.Float64,
				Reason:     overrideReason.String,
				ExpiresAt:  overrideExpires.Time,
			}
		}
		snap.Zones = append(snap.Zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(snap.Zones, func(i, j int) bool {
		return snap.Zones[i].TierLevel < snap.Zones[j].TierLevel
	})

	rows, err = s.db.Query(ctx, `
        SELECT name, start_hour, end_hour, day_mask, contribution
        FROM surge_time_rules`)
	if err != nil {
		return nil, fmt.Errorf("load surge time rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r TimeRule
		if err := rows.Scan(&r.Name, &r.StartHour, &r.EndHour, &r.DayMask, &r.Contribution); err != nil {
			return nil, fmt.Errorf("scan time rule: %w", err)
		}
		snap.TimeRules = append(snap.TimeRules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `SELECT key, value FROM algorithm_config`)
	if err != nil {
		return nil, fmt.Errorf("load algorithm config: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config knob: %w", err)
		}
		applyKnob(&snap.Config, key, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid surge config: %w", err)
	}
	return snap, nil
}

func applyKnob(cfg *AlgorithmConfig, key string, value float64) {
	switch key {
	case "surge_enabled":
		cfg.Enabled = value != 0
	case "max_surge_multiplier":
		cfg.MaxMultiplier = value
	case "search_radius_km":
		cfg.SearchRadiusKm = value
	case "high_demand_ratio":
		cfg.HighDemandRatio = value
	case "high_demand_base":
		cfg.HighDemandBase = value
	case "high_demand_scale":
		cfg.HighDemandScale = value
	case "moderate_demand_ratio":
		cfg.ModerateDemandRatio = value
	case "moderate_demand_bonus":
		cfg.ModerateDemandBonus = value
	case "no_drivers_penalty":
		cfg.NoDriversPenalty = value
	case "long_queue_threshold":
		cfg.LongQueueThreshold = int(value)
	case "long_queue_bonus":
		cfg.LongQueueBonus = value
	case "hotspot_radius_km":
		cfg.HotspotRadiusKm = value
	case "hotspot_window_minutes":
		cfg.HotspotWindow = time.Duration(value) * time.Minute
	case "hotspot_min_requests":
		cfg.HotspotMinRequests = int(value)
	case "hotspot_bonus":
		cfg.HotspotBonus = value
	}
}
