// README: Entry point; loads config, wires services, starts HTTP server and background loops.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pirideshare/internal/config"
	httptransport "pirideshare/internal/http"
	"pirideshare/internal/infra"
	"pirideshare/internal/maps"
	"pirideshare/internal/modules/airport"
	"pirideshare/internal/modules/dispatch"
	"pirideshare/internal/modules/pricing"
	"pirideshare/internal/modules/registry"
	"pirideshare/internal/modules/surge"
	"pirideshare/internal/notify"
	"pirideshare/internal/types"
	"pirideshare/internal/weather"
)

// demandHandle breaks the construction cycle between the surge calculator
// (which reads pending-request counts) and the dispatcher (which is priced
// via the surge service). It reports zero demand until the dispatcher is set.
type demandHandle struct {
	d *dispatch.Dispatcher
}

func (h *demandHandle) CountPendingNear(center types.Point, radiusKm float64) int {
	if h.d == nil {
		return 0
	}
	return h.d.CountPendingNear(center, radiusKm)
}

func (h *demandHandle) CountRecentNear(center types.Point, radiusKm float64, window time.Duration) int {
	if h.d == nil {
		return 0
	}
	return h.d.CountRecentNear(center, radiusKm, window)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
	} else {
		log.Println("RIDE_FIREBASE_PROJECT_ID not set; API is unauthenticated")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	natsConn, err := infra.NewNATS(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats init: %v", err)
	}
	defer natsConn.Close()

	hub := notify.NewHub()
	notifier := notify.Fanout{hub, notify.NewNATSNotifier(natsConn)}

	reg := registry.New()
	reg.SetMirror(registry.NewMirror(redisClient))

	airportMgr := airport.NewManager(notifier)
	reg.SetWatcher(airportMgr)

	weatherClient := weather.NewClient(cfg.Weather.APIKey)
	demand := &demandHandle{}
	calc := surge.NewCalculator(reg, demand, airportMgr, weatherClient)

	surgeStore := surge.NewStore(dbPool)
	surgeSvc := surge.NewService(surgeStore, calc, notifier, cfg.Surge.ReloadInterval)
	surgeSvc.OnReload = func(snap *surge.Snapshot) {
		reg.SetAirportZones(airportZones(snap))
	}
	if err := surgeSvc.Reload(ctx); err != nil {
		log.Printf("surge config: initial load failed, using defaults: %v", err)
	}

	var router pricing.Router
	if cfg.Maps.APIKey != "" {
		router, err = maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
	} else {
		log.Println("RIDE_MAPS_API_KEY not set; quotes use great-circle estimates")
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool), router, surgeSvc)

	dispatcher := dispatch.NewDispatcher(
		dispatch.Config(cfg.Dispatch),
		reg,
		pricingSvc,
		notifier,
		dispatch.NewPGRecorder(dbPool),
		dispatch.NewAuditStore(redisClient),
	)
	demand.d = dispatcher

	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httptransport.NewServer(httptransport.ServerDeps{
			Dispatcher: dispatcher,
			Pricing:    pricingSvc,
			Surge:      surgeSvc,
			Registry:   reg,
			Airport:    airportMgr,
			Hub:        hub,
			Verifier:   verifier,
		}).Router(),
	}

	go surgeSvc.RunReloader(ctx)
	go dispatcher.RunPendingBroadcast(ctx, cfg.Surge.BroadcastInterval)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// airportZones projects the surge snapshot's airport zones into the
// registry's geofence list.
func airportZones(snap *surge.Snapshot) []registry.AirportZone {
	var zones []registry.AirportZone
	for _, z := range snap.Zones {
		if z.Type == surge.ZoneAirport {
			zones = append(zones, registry.AirportZone{ID: z.ID, Center: z.Center, RadiusKm: z.RadiusKm})
		}
	}
	return zones
}
