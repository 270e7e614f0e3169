package engine

import (
	"errors"
	"math/rand"
	"slices"
)

var ErrRoomFull = errors.New("room is full")
var ErrGameAlreadyStarted = errors.New("game already started")
var ErrNotHost = errors.New("only the host can start")
var ErrStaleOutcome = errors.New("stale or misdirected outcome")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in_progress"
	PhaseEnded      Phase = "ended"
)

type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Rules struct {
	MaxPlayers int `json:"max_players"`
	Points     int `json:"points"`
}

// State is one room's full game state. It is a value: Apply never mutates
// its input, it returns the successor state.
type State struct {
	Phase      Phase    `json:"phase"`
	Status     string   `json:"status"`
	Players    []Player `json:"players"`
	HostID     string   `json:"host_id"`
	TurnIndex  int      `json:"turn_index"`
	CurrentID  string   `json:"current_player_id"`
	Letter     string   `json:"letter"`
	Generation uint64   `json:"generation"`
	Rules      Rules    `json:"rules"`
}

type CommandType string

const (
	CmdAddPlayer    CommandType = "AddPlayer"
	CmdRemovePlayer CommandType = "RemovePlayer"
	CmdStartGame    CommandType = "StartGame"
	CmdTurnOutcome  CommandType = "TurnOutcome"
)

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string
	Outcome  Outcome
	Reason   string
	// Generation is the turn instance a TurnOutcome was produced for.
	// An outcome whose generation no longer matches the state is stale.
	Generation uint64
}

type EventType string

const (
	EvtPlayerJoined  EventType = "PlayerJoined"
	EvtPlayerLeft    EventType = "PlayerLeft"
	EvtHostChanged   EventType = "HostChanged"
	EvtGameStarted   EventType = "GameStarted"
	EvtTurnEnded     EventType = "TurnEnded"
	EvtTurnRestarted EventType = "TurnRestarted"
	EvtRoomEmptied   EventType = "RoomEmptied"
)

type Event struct {
	Type     EventType
	PlayerID string
	Name     string
	Outcome  Outcome
	Reason   string
	Points   int
}

// Apply runs cmd against s and returns the events it produced plus the new
// state. rng is the room's randomness source; only letter draws consume it.
func Apply(s State, cmd Command, rng *rand.Rand) ([]Event, State, error) {
	switch cmd.Type {
	case CmdAddPlayer:
		return applyAddPlayer(s, cmd)
	case CmdRemovePlayer:
		return applyRemovePlayer(s, cmd)
	case CmdStartGame:
		return applyStartGame(s, cmd, rng)
	case CmdTurnOutcome:
		return applyTurnOutcome(s, cmd, rng)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyAddPlayer(s State, cmd Command) ([]Event, State, error) {
	if s.Phase != PhaseWaiting {
		return nil, s, ErrGameAlreadyStarted
	}
	if len(s.Players) >= s.Rules.MaxPlayers {
		return nil, s, ErrRoomFull
	}

	ns := s.clone()
	ns.Players = append(ns.Players, Player{ID: cmd.PlayerID, Name: cmd.Name})

	events := []Event{{Type: EvtPlayerJoined, PlayerID: cmd.PlayerID, Name: cmd.Name}}
	if ns.HostID == "" {
		ns.HostID = cmd.PlayerID
		events = append(events, Event{Type: EvtHostChanged, PlayerID: cmd.PlayerID})
	}
	return events, ns, nil
}

func applyStartGame(s State, cmd Command, rng *rand.Rand) ([]Event, State, error) {
	if s.HostID == "" || cmd.PlayerID != s.HostID {
		return nil, s, ErrNotHost
	}
	if s.Phase != PhaseWaiting {
		return nil, s, ErrGameAlreadyStarted
	}

	ns := s.clone()
	for i := range ns.Players {
		ns.Players[i].Score = 0
	}
	ns.Phase = PhaseInProgress
	ns.Status = "Game in Progress"
	ns.TurnIndex = 0
	ns.CurrentID = ns.Players[0].ID
	ns.Letter = drawLetter(rng)
	ns.Generation++

	return []Event{{Type: EvtGameStarted}}, ns, nil
}

func applyTurnOutcome(s State, cmd Command, rng *rand.Rand) ([]Event, State, error) {
	if s.Phase != PhaseInProgress || len(s.Players) == 0 {
		return nil, s, ErrStaleOutcome
	}
	if cmd.Generation != s.Generation {
		return nil, s, ErrStaleOutcome
	}
	if cmd.PlayerID != s.CurrentID {
		return nil, s, ErrStaleOutcome
	}

	ns := s.clone()
	evt := Event{
		Type:     EvtTurnEnded,
		PlayerID: s.CurrentID,
		Name:     s.Players[s.TurnIndex].Name,
		Outcome:  cmd.Outcome,
		Reason:   cmd.Reason,
	}
	if cmd.Outcome == OutcomeCorrect {
		ns.Players[ns.TurnIndex].Score += ns.Rules.Points
		ns.Letter = drawLetter(rng)
		evt.Points = ns.Rules.Points
	}

	ns.TurnIndex = (ns.TurnIndex + 1) % len(ns.Players)
	ns.CurrentID = ns.Players[ns.TurnIndex].ID
	ns.Generation++

	return []Event{evt}, ns, nil
}

func applyRemovePlayer(s State, cmd Command) ([]Event, State, error) {
	idx := slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == cmd.PlayerID })
	if idx < 0 {
		return nil, s, ErrUnknownPlayer
	}

	ns := s.clone()
	left := ns.Players[idx]
	ns.Players = slices.Delete(ns.Players, idx, idx+1)
	events := []Event{{Type: EvtPlayerLeft, PlayerID: left.ID, Name: left.Name}}

	if len(ns.Players) == 0 {
		ns.Phase = PhaseEnded
		ns.HostID = ""
		ns.CurrentID = ""
		ns.Generation++
		events = append(events, Event{Type: EvtRoomEmptied})
		return events, ns, nil
	}

	if left.ID == ns.HostID {
		ns.HostID = ns.Players[0].ID
		events = append(events, Event{Type: EvtHostChanged, PlayerID: ns.HostID})
	}

	if ns.Phase == PhaseInProgress {
		switch {
		case idx < ns.TurnIndex:
			// Someone earlier in the order left; shift the index so it keeps
			// pointing at the same current player. Their turn continues.
			ns.TurnIndex--
		case idx == ns.TurnIndex:
			// The current turn-holder left. Clamp, invalidate any pending
			// timer, and restart the turn for whoever sits there now.
			if ns.TurnIndex >= len(ns.Players) {
				ns.TurnIndex = 0
			}
			ns.CurrentID = ns.Players[ns.TurnIndex].ID
			ns.Generation++
			events = append(events, Event{Type: EvtTurnRestarted, PlayerID: ns.CurrentID})
		}
	}

	return events, ns, nil
}

func (s State) clone() State {
	ns := s
	ns.Players = slices.Clone(s.Players)
	return ns
}

// CurrentPlayer returns the turn-holder, if a game is running.
func (s State) CurrentPlayer() (Player, bool) {
	if s.Phase != PhaseInProgress || s.TurnIndex < 0 || s.TurnIndex >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.TurnIndex], true
}
