// README: Surge configuration model: zones, time rules, algorithm knobs, and
// the immutable snapshot swapped on reload.
package surge

import (
	"errors"
	"fmt"
	"time"

	"pirideshare/internal/modules/geo"
	"pirideshare/internal/types"
)

type ZoneType string

const (
	ZoneCity    ZoneType = "city"
	ZoneAirport ZoneType = "airport"
)

// Override is an admin-set manual surge value superseding the zone's base
// multiplier until it expires.
type Override struct {
	Multiplier float64   `json:"multiplier"`
	Reason     string    `json:"reason"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (o *Override) ActiveAt(t time.Time) bool {
	return o != nil && t.Before(o.ExpiresAt)
}

// Zone is a circular surge region. Lower TierLevel wins when zones overlap.
type Zone struct {
	ID             string      `json:"id"`
	Center         types.Point `json:"center"`
	RadiusKm       float64     `json:"radius_km"`
	TierLevel      int         `json:"tier_level"`
	BaseMultiplier float64     `json:"base_multiplier"`
	Type           ZoneType    `json:"type"`
	Override       *Override   `json:"override,omitempty"`
}

func (z Zone) Contains(p types.Point) bool {
	return geo.InRadius(z.Center, z.RadiusKm, p)
}

// TimeRule adds a flat contribution during a recurring window. DayMask bit i
// corresponds to time.Weekday(i); a window with EndHour < StartHour wraps
// past midnight.
type TimeRule struct {
	Name         string  `json:"name"`
	StartHour    int     `json:"start_hour"`
	EndHour      int     `json:"end_hour"`
	DayMask      int     `json:"day_mask"`
	Contribution float64 `json:"contribution"`
}

func (r TimeRule) Matches(t time.Time) bool {
	if r.DayMask&(1<<int(t.Weekday())) == 0 {
		return false
	}
	h := t.Hour()
	if r.StartHour <= r.EndHour {
		return h >= r.StartHour && h < r.EndHour
	}
	return h >= r.StartHour || h < r.EndHour
}

// AlgorithmConfig is the typed form of the hot-reloadable knob table.
type AlgorithmConfig struct {
	Enabled             bool
	MaxMultiplier       float64
	SearchRadiusKm      float64
	HighDemandRatio     float64
	HighDemandBase      float64
	HighDemandScale     float64
	ModerateDemandRatio float64
	ModerateDemandBonus float64
	NoDriversPenalty    float64
	LongQueueThreshold  int
	LongQueueBonus      float64
	HotspotRadiusKm     float64
	HotspotWindow       time.Duration
	HotspotMinRequests  int
	HotspotBonus        float64
}

func DefaultAlgorithmConfig() AlgorithmConfig {
	return AlgorithmConfig{
		Enabled:             true,
		MaxMultiplier:       5.0,
		SearchRadiusKm:      5.0,
		HighDemandRatio:     2.0,
		HighDemandBase:      0.3,
		HighDemandScale:     0.1,
		ModerateDemandRatio: 1.2,
		ModerateDemandBonus: 0.2,
		NoDriversPenalty:    1.0,
		LongQueueThreshold:  10,
		LongQueueBonus:      0.3,
		HotspotRadiusKm:     1.0,
		HotspotWindow:       10 * time.Minute,
		HotspotMinRequests:  5,
		HotspotBonus:        0.4,
	}
}

// Snapshot is an immutable surge configuration. Zones are kept sorted by
// ascending tier so the first containing zone wins a lookup.
type Snapshot struct {
	Zones     []Zone
	TimeRules []TimeRule
	Config    AlgorithmConfig
}

func DefaultSnapshot() *Snapshot {
	return &Snapshot{Config: DefaultAlgorithmConfig()}
}

// Validate rejects bad numeric configuration at load time so the calculator
// never has to.
func (s *Snapshot) Validate() error {
	if s.Config.MaxMultiplier < 1.0 {
		return fmt.Errorf("max multiplier %.2f below 1.0", s.Config.MaxMultiplier)
	}
	if s.Config.SearchRadiusKm <= 0 {
		return errors.New("search radius must be positive")
	}
	if s.Config.HotspotRadiusKm <= 0 || s.Config.HotspotWindow <= 0 {
		return errors.New("hotspot radius and window must be positive")
	}
	for _, z := range s.Zones {
		if z.RadiusKm <= 0 {
			return fmt.Errorf("zone %s: radius must be positive", z.ID)
		}
		if z.BaseMultiplier < 0 {
			return fmt.Errorf("zone %s: negative base multiplier", z.ID)
		}
		if z.Override != nil && z.Override.Multiplier < 0 {
			return fmt.Errorf("zone %s: negative override multiplier", z.ID)
		}
	}
	for _, r := range s.TimeRules {
		if r.StartHour < 0 || r.StartHour > 23 || r.EndHour < 0 || r.EndHour > 23 {
			return fmt.Errorf("time rule %s: hours out of range", r.Name)
		}
		if r.Contribution < 0 {
			return fmt.Errorf("time rule %s: negative contribution", r.Name)
		}
	}
	return nil
}

// DemandLevel is the coarse label derived from the request-to-driver ratio.
type DemandLevel string

const (
	DemandLow      DemandLevel = "Low"
	DemandModerate DemandLevel = "Moderate"
	DemandHigh     DemandLevel = "High"
	DemandVeryHigh DemandLevel = "Very High"
	DemandCritical DemandLevel = "Critical"
)

// Result is what the fare estimator and the surge endpoint consume.
type Result struct {
	Multiplier       float64     `json:"multiplier"`
	Factors          []string    `json:"factors"`
	DemandLevel      DemandLevel `json:"demand_level"`
	AvailableDrivers int         `json:"available_drivers"`
	PendingRequests  int         `json:"pending_requests"`
	IsActive         bool        `json:"is_active"`
}
