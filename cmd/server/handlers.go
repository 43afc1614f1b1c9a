package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"hexstride.io/internal/metrics"
	persistlog "hexstride.io/internal/persistence/log"
	"hexstride.io/internal/presence/decay"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/replay"
	"hexstride.io/internal/presence/tiers"
	"hexstride.io/internal/presence/tuning"
	"hexstride.io/internal/room"
)

const maxTimelineLimit = 500

type roomStats interface {
	Stats() []room.Stats
}

type recordLister interface {
	List(ctx context.Context, playerID string) ([]model.Record, error)
}

// handlers serves the thin HTTP surface next to /v1/ws.
type handlers struct {
	tune    tuning.Tuning
	tiers   *tiers.Table
	rooms   roomStats
	bus     *replay.Bus
	reg     *metrics.Registry
	hub     *decay.Hub
	replay  *persistlog.ReplayLogger
	records recordLister
}

func (h *handlers) register(mux *http.ServeMux, admin bool, logger *log.Logger) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", h.metrics)
	mux.HandleFunc("/v1/world", h.world)

	if !admin {
		if logger != nil {
			logger.Printf("admin endpoints disabled (HS_ENABLE_ADMIN_HTTP=false)")
		}
		return
	}
	mux.HandleFunc("/admin/v1/rooms", loopbackOnly(h.adminRooms))
	mux.HandleFunc("/admin/v1/timeline", loopbackOnly(h.adminTimeline))
	mux.HandleFunc("/admin/v1/records", loopbackOnly(h.adminRecords))
}

func (h *handlers) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if h.reg != nil {
		h.reg.WritePrometheus(rw)
	}
	if h.hub != nil {
		fmt.Fprintf(rw, "# HELP hexstride_decay_hub_dropped_total Decay events dropped on full room mailboxes.\n")
		fmt.Fprintf(rw, "# TYPE hexstride_decay_hub_dropped_total counter\n")
		fmt.Fprintf(rw, "hexstride_decay_hub_dropped_total %d\n", h.hub.Dropped())
		fmt.Fprintf(rw, "# HELP hexstride_decay_hub_subscribers Rooms subscribed to decay events.\n")
		fmt.Fprintf(rw, "# TYPE hexstride_decay_hub_subscribers gauge\n")
		fmt.Fprintf(rw, "hexstride_decay_hub_subscribers %d\n", h.hub.Subscribers())
	}
	if h.replay != nil {
		fmt.Fprintf(rw, "# HELP hexstride_replay_log_dropped_total Replay events not written because the log queue was full.\n")
		fmt.Fprintf(rw, "# TYPE hexstride_replay_log_dropped_total counter\n")
		fmt.Fprintf(rw, "hexstride_replay_log_dropped_total %d\n", h.replay.Dropped())
		fmt.Fprintf(rw, "# HELP hexstride_replay_log_failed_total Replay log write failures.\n")
		fmt.Fprintf(rw, "# TYPE hexstride_replay_log_failed_total counter\n")
		fmt.Fprintf(rw, "hexstride_replay_log_failed_total %d\n", h.replay.Failed())
	}
	if h.bus != nil {
		fmt.Fprintf(rw, "# HELP hexstride_replay_keys Keys with an in-memory replay timeline.\n")
		fmt.Fprintf(rw, "# TYPE hexstride_replay_keys gauge\n")
		fmt.Fprintf(rw, "hexstride_replay_keys %d\n", h.bus.Keys())
	}
}

type worldResp struct {
	Radius       int                `json:"radius"`
	Seed         int64              `json:"seed"`
	IntervalMs   int64              `json:"interval_ms"`
	InactivityMs int64              `json:"inactivity_ms"`
	Cap          int                `json:"cap"`
	Floor        int                `json:"floor"`
	Tiers        []tiers.Definition `json:"tiers"`
}

func (h *handlers) world(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, worldResp{
		Radius:       h.tune.World.Radius,
		Seed:         h.tune.World.Seed,
		IntervalMs:   h.tune.Presence.IntervalMs,
		InactivityMs: h.tune.Presence.InactivityMs,
		Cap:          h.tune.Presence.Cap,
		Floor:        h.tune.Presence.FloorValue(),
		Tiers:        h.tiers.Definitions(),
	})
}

func (h *handlers) adminRooms(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{"rooms": h.rooms.Stats()})
}

func (h *handlers) adminTimeline(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	player := strings.TrimSpace(q.Get("player"))
	hex := strings.TrimSpace(q.Get("hex"))
	if player == "" || hex == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "player and hex are required"})
		return
	}
	var since time.Time
	if v := q.Get("since_ms"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "bad since_ms"})
			return
		}
		since = time.UnixMilli(ms)
	}
	limit := maxTimelineLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "bad limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}
	events := h.bus.Query(player, hex, since, time.Time{}, limit)
	if events == nil {
		events = []model.ReplayEvent{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"player_id": player, "hex_id": hex, "events": events})
}

func (h *handlers) adminRecords(rw http.ResponseWriter, r *http.Request) {
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if player == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "player is required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	recs, err := h.records.List(ctx, player)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"player_id": player, "records": recs})
}

func loopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
