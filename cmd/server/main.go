package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hexstride.io/internal/metrics"
	"hexstride.io/internal/obslog"
	persistlog "hexstride.io/internal/persistence/log"
	"hexstride.io/internal/persistence/presencedb"
	"hexstride.io/internal/presence/decay"
	"hexstride.io/internal/presence/lifecycle"
	"hexstride.io/internal/presence/replay"
	"hexstride.io/internal/presence/tiers"
	"hexstride.io/internal/presence/tuning"
	"hexstride.io/internal/protocol"
	"hexstride.io/internal/room"
	"hexstride.io/internal/transport/ws"
	"hexstride.io/internal/worldmap"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		roomsPath  = flag.String("rooms", "", "path to rooms.yaml (default: <configs>/rooms.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		dbPath     = flag.String("db", "", "presence sqlite path (default: <data>/presence.sqlite)")
		noReplay   = flag.Bool("disable_replay_log", false, "do not write replay-*.jsonl.zst files")
		seed       = flag.Int64("seed", 0, "world seed override (0 keeps tuning.yaml)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.World.Seed = *seed
	}

	rp := strings.TrimSpace(*roomsPath)
	if rp == "" {
		rp = filepath.Join(*configDir, "rooms.yaml")
		if _, err := os.Stat(rp); err != nil {
			rp = ""
		}
	}
	roomsCfg, err := room.LoadRoomsConfig(rp)
	if err != nil {
		logger.Fatalf("load rooms: %v", err)
	}

	table, err := tiers.New(tune.Presence.Cap)
	if err != nil {
		logger.Fatalf("tiers: %v", err)
	}
	engine, err := lifecycle.New(tune.Presence, table)
	if err != nil {
		logger.Fatalf("lifecycle: %v", err)
	}
	world := worldmap.New(tune.World)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}
	dbp := strings.TrimSpace(*dbPath)
	if dbp == "" {
		dbp = filepath.Join(*dataDir, "presence.sqlite")
	}
	store, err := presencedb.OpenSQLite(dbp, world, table)
	if err != nil {
		logger.Fatalf("open presence db: %v", err)
	}
	defer store.Close()

	reg := newRegistry()
	bus := replay.NewBus(tune.Replay.RingCapacity)

	var replayLog *persistlog.ReplayLogger
	if !*noReplay {
		replayLog = persistlog.NewReplayLogger(filepath.Join(*dataDir, "replay"), 4096, func(err error) {
			logger.Printf("replay log write: %v", err)
		})
		replayLog.Attach(bus)
		defer replayLog.Close()
	}

	hub := decay.NewHub(256)
	decayLogger := log.New(os.Stdout, "[decay] ", log.LstdFlags|log.Lmicroseconds)
	proc, err := decay.NewProcessor(store, engine, decay.Config{
		BatchSize:  tune.Decay.BatchSize,
		Inactivity: tune.Presence.Inactivity(),
	}, decay.Options{Bus: bus, Log: obslog.New(decayLogger), Metrics: reg})
	if err != nil {
		logger.Fatalf("decay: %v", err)
	}

	mgr, err := room.NewManager(roomsCfg, tune, room.Deps{
		Store:   store,
		Engine:  engine,
		World:   world,
		Bus:     bus,
		Decay:   hub,
		Metrics: reg,
	}, func(id string) *slog.Logger {
		return obslog.New(log.New(os.Stdout, "[room "+id+"] ", log.LstdFlags|log.Lmicroseconds))
	})
	if err != nil {
		logger.Fatalf("rooms: %v", err)
	}

	validator, err := protocol.NewValidator()
	if err != nil {
		logger.Fatalf("schemas: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mgr.Start(ctx)
	go runDecay(ctx, proc, hub, tune.Decay.Every(), decayLogger)

	claims, err := claimsFor(*configDir)
	if err != nil {
		logger.Fatalf("claims: %v", err)
	}

	h := &handlers{
		tune:    tune,
		tiers:   table,
		rooms:   mgr,
		bus:     bus,
		reg:     reg,
		hub:     hub,
		replay:  replayLog,
		records: store,
	}
	mux := http.NewServeMux()
	h.register(mux, envBool("HS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), logger)
	mux.HandleFunc("/v1/ws", ws.NewServer(mgr, claims, validator, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s rooms=%d default=%s db=%s", *addr, len(roomsCfg.Rooms), mgr.DefaultRoomID(), dbp)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	mgr.Wait()
	logger.Printf("stopped")
}

// runDecay drives the batch processor on a fixed cadence until ctx ends.
func runDecay(ctx context.Context, proc *decay.Processor, hub *decay.Hub, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rep, err := proc.RunOnce(ctx, now, hub.Notify)
			if err != nil {
				continue
			}
			if rep.Decayed > 0 {
				logger.Printf("batch processed=%d decayed=%d skipped=%d", rep.Processed, rep.Decayed, rep.Skipped)
			}
		}
	}
}

func newRegistry() *metrics.Registry {
	reg := metrics.NewRegistry("hexstride_")
	reg.Describe("room_sessions", "Active sessions per room.")
	reg.Describe("room_updates_sent_total", "Presence update messages sent to clients.")
	reg.Describe("room_send_dropped_total", "Outbound messages dropped on a full session queue.")
	reg.Describe("room_persist_failed_total", "Store failures inside room steps.")
	reg.Describe("room_join_rejected_total", "Joins refused by a room.")
	reg.Describe("room_decay_updates_total", "Decay updates queued to sessions.")
	reg.Describe("session_explored_hexes_total", "Distinct hexes reported per closed session.")
	reg.Describe("move_rejected_total", "Rejected movement reports.")
	reg.Describe("presence_created_total", "Presence records created on first visit.")
	reg.Describe("presence_increment_total", "Accepted dwell increments.")
	reg.Describe("presence_tier_transition_total", "Tier transitions.")
	reg.Describe("presence_anomaly_total", "Flagged presence anomalies.")
	reg.Describe("decay_processed_total", "Records examined by decay batches.")
	reg.Describe("decay_decayed_total", "Records lowered by decay batches.")
	reg.Describe("decay_skipped_total", "Decay candidates that did not change.")
	reg.Describe("decay_batch_failed_total", "Decay batches rolled back.")
	reg.Describe("decay_notify_failed_total", "Decay callbacks that failed.")
	return reg
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	return !isDeployed()
}

func isDeployed() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return true
	default:
		return false
	}
}
