// README: End-to-end handler tests over a real dispatcher and registry.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pirideshare/internal/modules/dispatch"
	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/types"
)

var testPickup = types.Point{Lat: 37.7749, Lng: -122.4194}

type stubQuoter struct{ quote pricing.FareQuote }

func (s stubQuoter) Quote(context.Context, types.Point, types.Point, string) (pricing.FareQuote, error) {
	return s.quote, nil
}

func buildTestServer(t *testing.T, reg *registry.Registry) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := dispatch.DefaultConfig()
	cfg.OfferTimeout = time.Minute // responses arrive via HTTP, not timers
	quote := pricing.FareQuote{VehicleClass: "economy", Subtotal: 18.52, SurgeMultiplier: 1.0, Total: 18.52}
	d := dispatch.NewDispatcher(cfg, reg, stubQuoter{quote: quote}, nil, nil, nil)
	s := NewServer(ServerDeps{Dispatcher: d, Registry: reg})
	return s, s.Router()
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedDriver(reg *registry.Registry, id types.ID) {
	pos := types.Point{Lat: testPickup.Lat + 0.002, Lng: testPickup.Lng}
	reg.Upsert(context.Background(), id, registry.Update{
		Position: &pos,
		Vehicle:  &registry.Vehicle{Class: "economy"},
	})
}

func TestRequestRideAndAcceptOverHTTP(t *testing.T) {
	reg := registry.New()
	seedDriver(reg, "d1")
	_, r := buildTestServer(t, reg)

	w := doJSON(r, http.MethodPost, "/api/rides/request", map[string]any{
		"rider_id":      "rider-1",
		"pickup":        testPickup,
		"destination":   map[string]float64{"lat": 37.6213, "lng": -122.3790},
		"vehicle_class": "economy",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("request status = %d, body %s", w.Code, w.Body.String())
	}
	var ride dispatch.RideRequest
	if err := json.Unmarshal(w.Body.Bytes(), &ride); err != nil {
		t.Fatalf("decode ride: %v", err)
	}
	if ride.Status != dispatch.StatusOffered {
		t.Errorf("ride status = %s, want offered", ride.Status)
	}

	w = doJSON(r, http.MethodPost, "/api/rides/"+string(ride.ID)+"/respond", map[string]any{
		"driver_id": "d1",
		"accepted":  true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("respond status = %d, body %s", w.Code, w.Body.String())
	}

	rec, _ := reg.Get("d1")
	if rec.Available {
		t.Error("driver still available after accepting")
	}
}

func TestRequestRideNoDriversIs503(t *testing.T) {
	_, r := buildTestServer(t, registry.New())

	w := doJSON(r, http.MethodPost, "/api/rides/request", map[string]any{
		"rider_id":      "rider-1",
		"pickup":        testPickup,
		"destination":   map[string]float64{"lat": 37.6213, "lng": -122.3790},
		"vehicle_class": "economy",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body %s", w.Code, w.Body.String())
	}
}

func TestRideStatusUnknownIs404(t *testing.T) {
	_, r := buildTestServer(t, registry.New())
	w := doJSON(r, http.MethodGet, "/api/rides/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestStaleResponseIs409(t *testing.T) {
	_, r := buildTestServer(t, registry.New())
	w := doJSON(r, http.MethodPost, "/api/rides/gone/respond", map[string]any{
		"driver_id": "d1",
		"accepted":  true,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestLocationUpdateReturnsRecord(t *testing.T) {
	reg := registry.New()
	_, r := buildTestServer(t, reg)

	w := doJSON(r, http.MethodPut, "/api/drivers/d9/location", map[string]any{
		"position": testPickup,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var rec registry.DriverRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.ID != "d9" || !rec.Available {
		t.Errorf("record = %+v, want available d9", rec)
	}
}
