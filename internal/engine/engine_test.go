package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// stateWithPlayers builds a waiting room with players p1..pn, p1 hosting.
func stateWithPlayers(t *testing.T, n int) State {
	t.Helper()
	s := NewState(DefaultRules())
	rng := testRNG()
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		var err error
		_, s, err = Apply(s, Command{Type: CmdAddPlayer, PlayerID: id, Name: "Player " + id}, rng)
		require.NoError(t, err)
	}
	return s
}

func startedState(t *testing.T, n int) State {
	t.Helper()
	s := stateWithPlayers(t, n)
	_, s, err := Apply(s, Command{Type: CmdStartGame, PlayerID: s.HostID}, testRNG())
	require.NoError(t, err)
	return s
}

func TestAddPlayer_JoinOrderAndHost(t *testing.T) {
	s := stateWithPlayers(t, 3)

	require.Len(t, s.Players, 3)
	require.Equal(t, "p1", s.Players[0].ID)
	require.Equal(t, "p3", s.Players[2].ID)
	require.Equal(t, "p1", s.HostID)
	require.Equal(t, PhaseWaiting, s.Phase)
}

func TestAddPlayer_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(t *testing.T) State
		wantErr error
	}{
		{
			name:    "fifth join on a full room",
			setup:   func(t *testing.T) State { return stateWithPlayers(t, 4) },
			wantErr: ErrRoomFull,
		},
		{
			name:    "join after game started",
			setup:   func(t *testing.T) State { return startedState(t, 2) },
			wantErr: ErrGameAlreadyStarted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup(t)
			before := len(s.Players)
			_, ns, err := Apply(s, Command{Type: CmdAddPlayer, PlayerID: "late", Name: "Late"}, testRNG())
			require.ErrorIs(t, err, tc.wantErr)
			require.Len(t, ns.Players, before)
		})
	}
}

func TestStartGame_HostOnly(t *testing.T) {
	s := stateWithPlayers(t, 2)

	_, _, err := Apply(s, Command{Type: CmdStartGame, PlayerID: "p2"}, testRNG())
	require.ErrorIs(t, err, ErrNotHost)

	events, ns, err := Apply(s, Command{Type: CmdStartGame, PlayerID: "p1"}, testRNG())
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtGameStarted))
	require.Equal(t, PhaseInProgress, ns.Phase)
	require.Equal(t, 0, ns.TurnIndex)
	require.Equal(t, "p1", ns.CurrentID)
	require.Contains(t, Letters, ns.Letter)
	require.Equal(t, s.Generation+1, ns.Generation)

	_, _, err = Apply(ns, Command{Type: CmdStartGame, PlayerID: "p1"}, testRNG())
	require.ErrorIs(t, err, ErrGameAlreadyStarted)
}

func TestStartGame_ResetsScores(t *testing.T) {
	s := stateWithPlayers(t, 2)
	s.Players[0].Score = 40
	s.Players[1].Score = 20

	_, ns, err := Apply(s, Command{Type: CmdStartGame, PlayerID: "p1"}, testRNG())
	require.NoError(t, err)
	for _, p := range ns.Players {
		require.Zero(t, p.Score)
	}
}

func TestTurnOutcome_IncorrectAdvancesWithoutScoring(t *testing.T) {
	s := startedState(t, 2)
	letter := s.Letter

	events, ns, err := Apply(s, Command{
		Type:       CmdTurnOutcome,
		PlayerID:   "p1",
		Outcome:    OutcomeIncorrect,
		Reason:     "Time's up!",
		Generation: s.Generation,
	}, testRNG())
	require.NoError(t, err)

	require.Len(t, events, 1)
	require.Equal(t, EvtTurnEnded, events[0].Type)
	require.Equal(t, OutcomeIncorrect, events[0].Outcome)
	require.Zero(t, events[0].Points)

	require.Equal(t, letter, ns.Letter, "letter stays for the next player")
	require.Equal(t, 1, ns.TurnIndex)
	require.Equal(t, "p2", ns.CurrentID)
	require.Equal(t, s.Generation+1, ns.Generation)
	require.Zero(t, ns.Players[0].Score)
	require.Zero(t, ns.Players[1].Score)
}

func TestTurnOutcome_CorrectAwardsAndRedraws(t *testing.T) {
	s := startedState(t, 2)

	// p1 misses, then p2 answers correctly.
	_, s, err := Apply(s, Command{
		Type: CmdTurnOutcome, PlayerID: "p1", Outcome: OutcomeIncorrect, Generation: s.Generation,
	}, testRNG())
	require.NoError(t, err)

	events, ns, err := Apply(s, Command{
		Type: CmdTurnOutcome, PlayerID: "p2", Outcome: OutcomeCorrect, Generation: s.Generation,
	}, testRNG())
	require.NoError(t, err)

	require.Equal(t, 10, events[0].Points)
	require.Equal(t, 10, ns.Players[1].Score)
	require.Zero(t, ns.Players[0].Score)
	require.Equal(t, 0, ns.TurnIndex, "turn wraps back to p1")
	require.Equal(t, "p1", ns.CurrentID)
	require.Contains(t, Letters, ns.Letter)
}

func TestTurnOutcome_StaleOrMisdirectedDiscarded(t *testing.T) {
	s := startedState(t, 2)

	cases := []struct {
		name string
		cmd  Command
	}{
		{
			name: "expired generation",
			cmd:  Command{Type: CmdTurnOutcome, PlayerID: "p1", Outcome: OutcomeIncorrect, Generation: s.Generation - 1},
		},
		{
			name: "not the current player",
			cmd:  Command{Type: CmdTurnOutcome, PlayerID: "p2", Outcome: OutcomeCorrect, Generation: s.Generation},
		},
		{
			name: "unknown player",
			cmd:  Command{Type: CmdTurnOutcome, PlayerID: "ghost", Outcome: OutcomeCorrect, Generation: s.Generation},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, ns, err := Apply(s, tc.cmd, testRNG())
			require.ErrorIs(t, err, ErrStaleOutcome)
			require.Empty(t, events)
			require.Equal(t, s, ns, "state must be untouched")
		})
	}
}

func TestTurnOutcome_BeforeStartDiscarded(t *testing.T) {
	s := stateWithPlayers(t, 2)
	_, _, err := Apply(s, Command{Type: CmdTurnOutcome, PlayerID: "p1", Outcome: OutcomeCorrect}, testRNG())
	require.ErrorIs(t, err, ErrStaleOutcome)
}

func TestRemovePlayer_CurrentLeavingRestartsTurn(t *testing.T) {
	s := startedState(t, 3)

	// Advance so p2 (index 1) holds the turn.
	_, s, err := Apply(s, Command{
		Type: CmdTurnOutcome, PlayerID: "p1", Outcome: OutcomeIncorrect, Generation: s.Generation,
	}, testRNG())
	require.NoError(t, err)
	require.Equal(t, 1, s.TurnIndex)

	events, ns, err := Apply(s, Command{Type: CmdRemovePlayer, PlayerID: "p2"}, testRNG())
	require.NoError(t, err)

	require.True(t, ContainsEvent(events, EvtTurnRestarted))
	require.Equal(t, 1, ns.TurnIndex, "slot 1 now belongs to the next player")
	require.Equal(t, "p3", ns.CurrentID)
	require.Equal(t, s.Generation+1, ns.Generation, "pending timer invalidated")
}

func TestRemovePlayer_LastIndexWrapsToZero(t *testing.T) {
	s := startedState(t, 3)
	var err error
	for _, id := range []string{"p1", "p2"} {
		_, s, err = Apply(s, Command{
			Type: CmdTurnOutcome, PlayerID: id, Outcome: OutcomeIncorrect, Generation: s.Generation,
		}, testRNG())
		require.NoError(t, err)
	}
	require.Equal(t, 2, s.TurnIndex)

	events, ns, err := Apply(s, Command{Type: CmdRemovePlayer, PlayerID: "p3"}, testRNG())
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtTurnRestarted))
	require.Equal(t, 0, ns.TurnIndex)
	require.Equal(t, "p1", ns.CurrentID)
}

func TestRemovePlayer_EarlierSeatKeepsCurrentPlayer(t *testing.T) {
	s := startedState(t, 3)
	_, s, err := Apply(s, Command{
		Type: CmdTurnOutcome, PlayerID: "p1", Outcome: OutcomeIncorrect, Generation: s.Generation,
	}, testRNG())
	require.NoError(t, err)
	require.Equal(t, "p2", s.CurrentID)

	events, ns, err := Apply(s, Command{Type: CmdRemovePlayer, PlayerID: "p1"}, testRNG())
	require.NoError(t, err)

	require.False(t, ContainsEvent(events, EvtTurnRestarted))
	require.Equal(t, 0, ns.TurnIndex)
	require.Equal(t, "p2", ns.CurrentID, "same player keeps the turn")
	require.Equal(t, s.Generation, ns.Generation, "timer stays armed")
}

func TestRemovePlayer_HostReassignedToEarliestJoined(t *testing.T) {
	s := stateWithPlayers(t, 3)
	events, ns, err := Apply(s, Command{Type: CmdRemovePlayer, PlayerID: "p1"}, testRNG())
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtHostChanged))
	require.Equal(t, "p2", ns.HostID)
}

func TestRemovePlayer_LastPlayerEmptiesRoom(t *testing.T) {
	s := startedState(t, 1)
	events, ns, err := Apply(s, Command{Type: CmdRemovePlayer, PlayerID: "p1"}, testRNG())
	require.NoError(t, err)
	require.True(t, ContainsEvent(events, EvtRoomEmptied))
	require.Equal(t, PhaseEnded, ns.Phase)
	require.Empty(t, ns.Players)
}

func TestRemovePlayer_UnknownIsNoOp(t *testing.T) {
	s := stateWithPlayers(t, 2)
	_, ns, err := Apply(s, Command{Type: CmdRemovePlayer, PlayerID: "ghost"}, testRNG())
	require.ErrorIs(t, err, ErrUnknownPlayer)
	require.Equal(t, s, ns)
}

// TestTurnIndexValidUnderChurn hammers the state with random joins, leaves
// and outcomes and checks the turn index never dangles mid-game.
func TestTurnIndexValidUnderChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewState(DefaultRules())
	next := 0

	for i := 0; i < 2000; i++ {
		switch rng.Intn(4) {
		case 0:
			next++
			id := fmt.Sprintf("c%d", next)
			_, s, _ = Apply(s, Command{Type: CmdAddPlayer, PlayerID: id, Name: id}, rng)
		case 1:
			if len(s.Players) > 0 {
				victim := s.Players[rng.Intn(len(s.Players))].ID
				_, s, _ = Apply(s, Command{Type: CmdRemovePlayer, PlayerID: victim}, rng)
			}
		case 2:
			_, s, _ = Apply(s, Command{Type: CmdStartGame, PlayerID: s.HostID}, rng)
		case 3:
			outcome := OutcomeIncorrect
			if rng.Intn(2) == 0 {
				outcome = OutcomeCorrect
			}
			_, s, _ = Apply(s, Command{
				Type: CmdTurnOutcome, PlayerID: s.CurrentID, Outcome: outcome, Generation: s.Generation,
			}, rng)
		}

		if s.Phase == PhaseEnded {
			s = NewState(DefaultRules())
			continue
		}
		if s.Phase == PhaseInProgress && len(s.Players) > 0 {
			require.GreaterOrEqual(t, s.TurnIndex, 0)
			require.Less(t, s.TurnIndex, len(s.Players))
			require.Equal(t, s.Players[s.TurnIndex].ID, s.CurrentID)
		}
		for _, p := range s.Players {
			require.GreaterOrEqual(t, p.Score, 0)
		}
	}
}
