package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hexstride.io/internal/metrics"
	"hexstride.io/internal/obslog"
	"hexstride.io/internal/presence/anomaly"
	"hexstride.io/internal/presence/lifecycle"
	"hexstride.io/internal/presence/model"
	"hexstride.io/internal/presence/replay"
	"hexstride.io/internal/presence/tuning"
	"hexstride.io/internal/protocol"
	"hexstride.io/internal/worldmap"
)

var (
	ErrRoomFull    = errors.New("room full")
	ErrRoomClosed  = errors.New("room closed")
	ErrRoomBusy    = errors.New("room inbox busy")
	ErrUnknownRoom = errors.New("unknown room")
)

// Store is the record store as the room uses it.
type Store interface {
	Get(ctx context.Context, playerID, hexID string) (model.Record, bool, error)
	List(ctx context.Context, playerID string) ([]model.Record, error)
	Save(ctx context.Context, r model.Record) (model.Record, error)
	Ensure(ctx context.Context, playerID, hexID string, create func() model.Record) (model.Record, bool, error)
}

// World is the static map as the room uses it.
type World interface {
	worldmap.Lookup
	SpawnHex() string
	Radius() int
	Seed() int64
}

// DecaySource hands each room its own mailbox of decay events.
type DecaySource interface {
	Subscribe(id string) (<-chan model.DecayEvent, func())
}

type Config struct {
	ID          string
	MaxSessions int
	Presence    tuning.Presence
	Anomaly     anomaly.Config
	RateLimits  tuning.RateLimits
	// OpTimeout bounds each store call. Calls are not tied to the room's
	// context, so shutdown never interrupts a write halfway.
	OpTimeout time.Duration
}

type Deps struct {
	Store   Store
	Engine  *lifecycle.Engine
	World   World
	Bus     *replay.Bus
	Decay   DecaySource
	Log     *slog.Logger
	Metrics metrics.Sink
	Now     func() time.Time
}

type JoinRequest struct {
	// Ctx is the caller's wait; a request whose Ctx is done by the time the
	// room reaches it is refused without registering a session.
	Ctx      context.Context
	PlayerID string
	Out      chan []byte
	Resp     chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     error
}

type moveRequest struct {
	SessionID string
	HexID     string
}

type Stats struct {
	ID       string `json:"room_id"`
	Sessions int64  `json:"sessions"`
	Ticks    uint64 `json:"ticks"`
}

// Room owns the live sessions of one room. Every handler runs on the Run
// goroutine; the exported methods only enqueue.
type Room struct {
	cfg     Config
	store   Store
	engine  *lifecycle.Engine
	world   World
	bus     *replay.Bus
	decay   DecaySource
	log     *slog.Logger
	metrics metrics.Sink
	now     func() time.Time
	limits  rateLimits

	join     chan JoinRequest
	leave    chan string
	moves    chan moveRequest
	snapshot chan string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	sessions map[string]*session
	order    []string
	detector *anomaly.Detector

	sessionCount atomic.Int64
	ticks        atomic.Uint64
}

func New(cfg Config, deps Deps) (*Room, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("room: empty id")
	}
	if deps.Store == nil || deps.Engine == nil || deps.World == nil {
		return nil, fmt.Errorf("room %s: store, engine and world are required", cfg.ID)
	}
	if cfg.Presence.IntervalMs <= 0 {
		return nil, fmt.Errorf("room %s: interval_ms must be > 0", cfg.ID)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 512
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 3 * time.Second
	}
	if cfg.Anomaly == (anomaly.Config{}) {
		cfg.Anomaly = anomaly.DefaultConfig()
	}
	r := &Room{
		cfg:      cfg,
		store:    deps.Store,
		engine:   deps.Engine,
		world:    deps.World,
		bus:      deps.Bus,
		decay:    deps.Decay,
		log:      deps.Log,
		metrics:  deps.Metrics,
		now:      deps.Now,
		limits:   rateLimits{perSecond: cfg.RateLimits.MovesPerSecond, burst: cfg.RateLimits.MoveBurst},
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 256),
		moves:    make(chan moveRequest, 1024),
		snapshot: make(chan string, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		sessions: map[string]*session{},
		detector: anomaly.NewDetector(cfg.Anomaly),
	}
	if r.log == nil {
		r.log = obslog.Nop()
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.limits.perSecond <= 0 {
		r.limits.perSecond = 10
	}
	if r.limits.burst <= 0 {
		r.limits.burst = 20
	}
	return r, nil
}

func (r *Room) ID() string { return r.cfg.ID }

func (r *Room) Stats() Stats {
	return Stats{ID: r.cfg.ID, Sessions: r.sessionCount.Load(), Ticks: r.ticks.Load()}
}

// Run processes room events until ctx is done or Stop is called.
func (r *Room) Run(ctx context.Context) error {
	defer close(r.done)

	var decayCh <-chan model.DecayEvent
	if r.decay != nil {
		ch, unsubscribe := r.decay.Subscribe(r.cfg.ID)
		defer unsubscribe()
		decayCh = ch
	}

	ticker := time.NewTicker(r.cfg.Presence.Interval())
	defer ticker.Stop()
	defer r.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case req := <-r.join:
			r.handleJoin(req)
		case id := <-r.leave:
			r.handleLeave(id)
		case m := <-r.moves:
			r.handleMove(m)
		case id := <-r.snapshot:
			r.handleSnapshotRequest(id)
		case ev, ok := <-decayCh:
			if !ok {
				decayCh = nil
				continue
			}
			r.handleDecay(append([]model.DecayEvent{ev}, drain(decayCh)...))
		case <-ticker.C:
			r.tick(r.now())
		}
	}
}

func (r *Room) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Join enqueues a join and waits for the welcome.
func (r *Room) Join(ctx context.Context, playerID string, out chan []byte) (protocol.WelcomeMsg, error) {
	resp := make(chan JoinResponse, 1)
	select {
	case r.join <- JoinRequest{Ctx: ctx, PlayerID: playerID, Out: out, Resp: resp}:
	case <-r.done:
		return protocol.WelcomeMsg{}, ErrRoomClosed
	case <-ctx.Done():
		return protocol.WelcomeMsg{}, ctx.Err()
	}
	select {
	case res := <-resp:
		return res.Welcome, res.Err
	case <-r.done:
		return protocol.WelcomeMsg{}, ErrRoomClosed
	case <-ctx.Done():
		go r.releaseAbandoned(resp)
		return protocol.WelcomeMsg{}, ctx.Err()
	}
}

// releaseAbandoned waits out a join whose caller stopped waiting. If the room
// admitted it anyway, the session is removed again.
func (r *Room) releaseAbandoned(resp <-chan JoinResponse) {
	select {
	case res := <-resp:
		if res.Err == nil && res.Welcome.SessionID != "" {
			r.Leave(res.Welcome.SessionID)
		}
	case <-r.done:
	}
}

func (r *Room) Leave(sessionID string) {
	select {
	case r.leave <- sessionID:
	case <-r.done:
	}
}

// Move enqueues a movement sample. It never blocks; a full inbox reports
// ErrRoomBusy.
func (r *Room) Move(sessionID, hexID string) error {
	if r.closed() {
		return ErrRoomClosed
	}
	select {
	case r.moves <- moveRequest{SessionID: sessionID, HexID: hexID}:
		return nil
	case <-r.done:
		return ErrRoomClosed
	default:
		return ErrRoomBusy
	}
}

func (r *Room) RequestSnapshot(sessionID string) error {
	if r.closed() {
		return ErrRoomClosed
	}
	select {
	case r.snapshot <- sessionID:
		return nil
	case <-r.done:
		return ErrRoomClosed
	default:
		return ErrRoomBusy
	}
}

func (r *Room) handleJoin(req JoinRequest) {
	reply := func(res JoinResponse) {
		if req.Resp != nil {
			req.Resp <- res
		}
	}
	if req.Ctx != nil && req.Ctx.Err() != nil {
		reply(JoinResponse{Err: req.Ctx.Err()})
		return
	}
	if req.PlayerID == "" || req.Out == nil {
		reply(JoinResponse{Err: fmt.Errorf("room %s: join needs a player and an outbox", r.cfg.ID)})
		return
	}
	if len(r.sessions) >= r.cfg.MaxSessions {
		metrics.Inc(r.metrics, "room_join_rejected_total", metrics.T("room", r.cfg.ID))
		reply(JoinResponse{Err: ErrRoomFull})
		return
	}

	s := newSession(uuid.NewString(), req.PlayerID, req.Out, r.limits)
	r.sessions[s.id] = s
	r.order = append(r.order, s.id)
	r.sessionCount.Store(int64(len(r.sessions)))
	r.metrics.Set("room_sessions", float64(len(r.sessions)), metrics.T("room", r.cfg.ID))

	reply(JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.id,
		PlayerID:        s.playerID,
		RoomID:          r.cfg.ID,
		SpawnHex:        r.world.SpawnHex(),
		WorldParams: protocol.WorldParams{
			Radius:     r.world.Radius(),
			Seed:       r.world.Seed(),
			IntervalMs: r.cfg.Presence.IntervalMs,
			Cap:        r.engine.Cap(),
			Floor:      r.engine.Floor(),
			Tiers:      r.engine.Tiers().Definitions(),
		},
	}})
	r.log.Info("session joined", "session", s.id, "player", s.playerID)

	r.sendSnapshot(s)
	s.state = stateActive
}

func (r *Room) handleLeave(sessionID string) {
	s := r.sessions[sessionID]
	if s == nil {
		return
	}
	explored := len(s.explored)
	s.clear()
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if !r.hasPlayer(s.playerID) {
		r.detector.Forget(s.playerID)
	}
	r.sessionCount.Store(int64(len(r.sessions)))
	r.metrics.Set("room_sessions", float64(len(r.sessions)), metrics.T("room", r.cfg.ID))
	r.metrics.Add("session_explored_hexes_total", float64(explored), metrics.T("room", r.cfg.ID))
	r.log.Info("session left", "session", sessionID, "player", s.playerID, "explored", explored)
}

func (r *Room) handleSnapshotRequest(sessionID string) {
	if s := r.sessions[sessionID]; s != nil {
		r.sendSnapshot(s)
	}
}

func (r *Room) sendSnapshot(s *session) {
	ctx, cancel := r.opCtx()
	defer cancel()
	recs, err := r.store.List(ctx, s.playerID)
	if err != nil {
		r.persistFailed("list", s, "", err)
		return
	}
	entries := make([]protocol.SnapshotEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, protocol.SnapshotEntry{HexID: rec.HexID, Value: rec.Value, TierID: rec.TierID})
	}
	r.send(s, protocol.SnapshotMsg{Type: protocol.TypeSnapshot, Entries: entries, TS: r.now().UnixMilli()})
}

func (r *Room) hasPlayer(playerID string) bool {
	for _, s := range r.sessions {
		if s.playerID == playerID {
			return true
		}
	}
	return false
}

// flush sends what s has queued as one message and empties the queue.
func (r *Room) flush(s *session, now time.Time) {
	msg := protocol.Flush(s.pending, now.UnixMilli())
	s.pending = s.pending[:0]
	if msg == nil {
		return
	}
	kind := "single"
	if _, ok := msg.(protocol.UpdateBundledMsg); ok {
		kind = "bundled"
	}
	metrics.Inc(r.metrics, "room_updates_sent_total", metrics.T("room", r.cfg.ID), metrics.T("kind", kind))
	r.send(s, msg)
}

func (r *Room) send(s *session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		r.log.Error("marshal outbound failed", "session", s.id, "error", err)
		return
	}
	select {
	case s.out <- b:
	default:
		metrics.Inc(r.metrics, "room_send_dropped_total", metrics.T("room", r.cfg.ID))
		r.log.Warn("outbox full, message dropped", "session", s.id)
	}
}

func (r *Room) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.cfg.OpTimeout)
}

func (r *Room) persistFailed(op string, s *session, hexID string, err error) {
	metrics.Inc(r.metrics, "room_persist_failed_total", metrics.T("room", r.cfg.ID), metrics.T("op", op))
	r.log.Warn(op+" persist failed", "session", s.id, "player", s.playerID, "hex", hexID, "error", err)
}

// sessionsInOrder returns live sessions in join order.
func (r *Room) sessionsInOrder() []*session {
	out := make([]*session, 0, len(r.order))
	for _, id := range r.order {
		if s := r.sessions[id]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r *Room) closeAll() {
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.handleLeave(id)
	}
}

func drain(ch <-chan model.DecayEvent) []model.DecayEvent {
	var out []model.DecayEvent
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
