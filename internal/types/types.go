package types

import (
	"encoding/json"

	"antakshari-backend/internal/engine"
)

type ClientMessage struct {
	Type        string          `json:"type"`
	RoomCode    string          `json:"room_code,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	TargetID    string          `json:"target_id,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type     string          `json:"type"`
	Code     string          `json:"code,omitempty"`
	Error    string          `json:"error,omitempty"`
	Players  []engine.Player `json:"players,omitempty"`
	State    *engine.State   `json:"state,omitempty"`
	Text     string          `json:"text,omitempty"`
	Seconds  int             `json:"seconds,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Letter   string          `json:"letter,omitempty"`
	From     string          `json:"from,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}
