package engine

// NewState returns a fresh waiting-room state with no players.
func NewState(rules Rules) State {
	return State{
		Phase:     PhaseWaiting,
		Status:    "Waiting for players...",
		Players:   []Player{},
		TurnIndex: -1,
		Letter:    "-",
		Rules:     rules,
	}
}

// DefaultRules is a 4-seat room scoring 10 points per correct answer.
func DefaultRules() Rules {
	return Rules{MaxPlayers: 4, Points: 10}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
