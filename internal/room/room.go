package room

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"antakshari-backend/internal/engine"
	"antakshari-backend/internal/types"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	Player engine.Player
	Outbox chan types.ServerMessage
	Reply  chan error
}

func (Join) isRoomMsg() {}

type Leave struct{ PlayerID string }

func (Leave) isRoomMsg() {}

type Start struct{ PlayerID string }

func (Start) isRoomMsg() {}

type Outcome struct {
	TargetID string
	Outcome  engine.Outcome
	Reason   string
}

func (Outcome) isRoomMsg() {}

// Relay carries a signaling payload (offer/answer/candidate) through the
// room purely for addressing. It never touches game state.
type Relay struct {
	Kind     string
	SenderID string
	TargetID string // empty means everyone but the sender
	Payload  json.RawMessage
}

func (Relay) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// timerFired and turnStart are posted by time.AfterFunc callbacks. They
// carry the generation they were scheduled for; the loop drops them when
// the room has since moved on.
type timerFired struct{ gen uint64 }

func (timerFired) isRoomMsg() {}

type turnStart struct{ gen uint64 }

func (turnStart) isRoomMsg() {}

// View is a test-only reflection of room internals, answered on the loop
// goroutine so reads never race mutations.
type View struct {
	NumClients    int
	PendingTimers int
	State         engine.State
}

type Config struct {
	TurnTimeout time.Duration
	GraceDelay  time.Duration
	Rules       engine.Rules
}

type Room struct {
	code    string
	cfg     Config
	inbox   chan Msg
	state   engine.State
	clients map[string]chan types.ServerMessage
	rng     *rand.Rand
	log     *zap.Logger
	onEmpty func()

	// At most one of timer/grace is armed at any instant.
	timer    *time.Timer
	grace    *time.Timer
	ticker   *time.Ticker
	tickC    <-chan time.Time
	deadline time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New spawns the room's loop goroutine. rng is the room's only randomness
// source; onEmpty runs (on the loop goroutine) when the last player leaves.
func New(parent context.Context, code string, cfg Config, rng *rand.Rand, log *zap.Logger, onEmpty func()) *Room {
	ctx, cancel := context.WithCancel(parent)
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Room{
		code:    code,
		cfg:     cfg,
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(cfg.Rules),
		clients: make(map[string]chan types.ServerMessage),
		rng:     rng,
		log:     log.With(zap.String("room", code)),
		onEmpty: onEmpty,
		ctx:     ctx,
		cancel:  cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

// Done closes when the room has shut down; senders waiting on a reply
// should select against it.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-r.tickC:
			remaining := int(time.Until(r.deadline).Round(time.Second) / time.Second)
			if remaining < 0 {
				remaining = 0
			}
			r.broadcast(types.ServerMessage{Type: "timerTick", Seconds: remaining})

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case Leave:
				if r.handleLeave(msg.PlayerID) {
					return
				}

			case Start:
				r.handleStart(msg.PlayerID)

			case Outcome:
				r.handleOutcome(engine.Command{
					Type:       engine.CmdTurnOutcome,
					PlayerID:   msg.TargetID,
					Outcome:    msg.Outcome,
					Reason:     msg.Reason,
					Generation: r.state.Generation,
				})

			case timerFired:
				if msg.gen != r.state.Generation {
					break // stale: the turn already ended another way
				}
				r.log.Info("turn timed out", zap.Uint64("generation", msg.gen))
				r.handleOutcome(engine.Command{
					Type:       engine.CmdTurnOutcome,
					PlayerID:   r.state.CurrentID,
					Outcome:    engine.OutcomeIncorrect,
					Reason:     "Time's up!",
					Generation: msg.gen,
				})

			case turnStart:
				if msg.gen != r.state.Generation {
					break
				}
				r.startTurn()

			case Relay:
				r.handleRelay(msg)

			case GetState:
				pending := 0
				if r.timer != nil {
					pending++
				}
				if r.grace != nil {
					pending++
				}
				msg.Reply <- View{
					NumClients:    len(r.clients),
					PendingTimers: pending,
					State:         r.state,
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	_, ns, err := engine.Apply(r.state, engine.Command{
		Type:     engine.CmdAddPlayer,
		PlayerID: msg.Player.ID,
		Name:     msg.Player.Name,
	}, r.rng)
	if err != nil {
		msg.Reply <- err
		return
	}
	r.state = ns
	r.clients[msg.Player.ID] = msg.Outbox
	msg.Reply <- nil

	r.log.Info("player joined",
		zap.String("player", msg.Player.ID),
		zap.Int("players", len(r.state.Players)))

	r.broadcastExcept(msg.Player.ID, types.ServerMessage{
		Type:    "userJoined",
		Players: []engine.Player{{ID: msg.Player.ID, Name: msg.Player.Name}},
	})
	r.broadcastRoster()
}

func (r *Room) handleLeave(playerID string) bool {
	events, ns, err := engine.Apply(r.state, engine.Command{
		Type:     engine.CmdRemovePlayer,
		PlayerID: playerID,
	}, r.rng)
	if err != nil {
		// Duplicate disconnect notification; nothing to do.
		return false
	}
	r.state = ns

	if ch, ok := r.clients[playerID]; ok {
		close(ch)
		delete(r.clients, playerID)
	}

	if engine.ContainsEvent(events, engine.EvtRoomEmptied) {
		r.log.Info("room empty, destroying")
		r.shutdown()
		if r.onEmpty != nil {
			r.onEmpty()
		}
		return true
	}

	r.log.Info("player left",
		zap.String("player", playerID),
		zap.Int("players", len(r.state.Players)))

	r.broadcast(types.ServerMessage{Type: "userLeft", PlayerID: playerID})
	r.broadcastRoster()

	if engine.ContainsEvent(events, engine.EvtTurnRestarted) {
		// The turn-holder left; hand the turn to whoever sits at that
		// index now instead of waiting for the dead timer.
		r.startTurn()
	}
	return false
}

func (r *Room) handleStart(playerID string) {
	_, ns, err := engine.Apply(r.state, engine.Command{
		Type:     engine.CmdStartGame,
		PlayerID: playerID,
	}, r.rng)
	if err != nil {
		// Non-host or already running: silently ignored per protocol.
		r.log.Debug("start rejected", zap.String("player", playerID), zap.Error(err))
		return
	}
	r.state = ns
	r.log.Info("game started", zap.String("host", playerID))

	r.broadcast(types.ServerMessage{Type: "gameStarted"})
	r.startTurn()
}

func (r *Room) handleOutcome(cmd engine.Command) {
	events, ns, err := engine.Apply(r.state, cmd, r.rng)
	if err != nil {
		// Stale or misdirected: drop without touching the live timer.
		return
	}
	r.state = ns
	r.stopTimers()

	for _, evt := range events {
		if evt.Type != engine.EvtTurnEnded {
			continue
		}
		r.broadcast(types.ServerMessage{Type: "narration", Text: narrate(evt, ns.Letter)})
	}
	st := r.state
	r.broadcast(types.ServerMessage{Type: "updateGameState", State: &st})

	// Grace delay so clients can render the outcome before the next turn.
	gen := r.state.Generation
	r.grace = time.AfterFunc(r.cfg.GraceDelay, func() { r.post(turnStart{gen: gen}) })
}

// startTurn arms the countdown for the player at the current index and
// announces the turn. Any previously pending timer is cancelled first.
func (r *Room) startTurn() {
	r.stopTimers()

	cur, ok := r.state.CurrentPlayer()
	if !ok {
		return
	}
	st := r.state
	r.broadcast(types.ServerMessage{Type: "nextTurn", PlayerID: cur.ID, Letter: st.Letter})
	r.broadcast(types.ServerMessage{
		Type: "narration",
		Text: fmt.Sprintf("It's %s's turn! Sing from '%s'.", cur.Name, st.Letter),
	})
	r.broadcast(types.ServerMessage{Type: "updateGameState", State: &st})

	gen := r.state.Generation
	r.deadline = time.Now().Add(r.cfg.TurnTimeout)
	r.timer = time.AfterFunc(r.cfg.TurnTimeout, func() { r.post(timerFired{gen: gen}) })
	r.ticker = time.NewTicker(time.Second)
	r.tickC = r.ticker.C
}

func (r *Room) handleRelay(msg Relay) {
	if _, ok := r.clients[msg.SenderID]; !ok {
		return
	}
	out := types.ServerMessage{Type: msg.Kind, From: msg.SenderID, Payload: msg.Payload}
	if msg.TargetID != "" {
		if ch, ok := r.clients[msg.TargetID]; ok {
			r.send(msg.TargetID, ch, out)
		}
		return
	}
	r.broadcastExcept(msg.SenderID, out)
}

func narrate(evt engine.Event, letter string) string {
	if evt.Outcome == engine.OutcomeCorrect {
		return fmt.Sprintf("Correct, %s! +%d points. Next letter is '%s'.", evt.Name, evt.Points, letter)
	}
	reason := evt.Reason
	if reason == "" {
		reason = "Not this time"
	}
	return fmt.Sprintf("%s, %s. No points. Same letter for the next player.", reason, evt.Name)
}

// broadcastRoster sends the player list and a state snapshot as applied.
func (r *Room) broadcastRoster() {
	st := r.state
	r.broadcast(types.ServerMessage{Type: "updatePlayers", Players: st.Players})
	r.broadcast(types.ServerMessage{Type: "updateGameState", State: &st})
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for id, ch := range r.clients {
		r.send(id, ch, msg)
	}
}

func (r *Room) broadcastExcept(exceptID string, msg types.ServerMessage) {
	for id, ch := range r.clients {
		if id == exceptID {
			continue
		}
		r.send(id, ch, msg)
	}
}

func (r *Room) send(id string, ch chan types.ServerMessage, msg types.ServerMessage) {
	select {
	case ch <- msg:
	default:
		// Slow or wedged client: cut it loose. Its gateway will notice the
		// closed outbox and post the Leave.
		r.log.Warn("dropping slow client", zap.String("player", id))
		close(ch)
		delete(r.clients, id)
	}
}

func (r *Room) stopTimers() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.grace != nil {
		r.grace.Stop()
		r.grace = nil
	}
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
		r.tickC = nil
	}
}

// post delivers a timer callback into the inbox without leaking the
// callback goroutine if the room is already gone.
func (r *Room) post(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Room) shutdown() {
	r.stopTimers()
	for id, ch := range r.clients {
		close(ch)
		delete(r.clients, id)
	}
	r.cancel()
}
