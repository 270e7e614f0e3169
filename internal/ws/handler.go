package ws

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"antakshari-backend/internal/engine"
	"antakshari-backend/internal/hub"
	"antakshari-backend/internal/room"
	"antakshari-backend/internal/types"
)

var errRoomGone = errors.New("room gone")

// Handler is the connection gateway: it binds each websocket to at most one
// room, forwards inbound events, and tears the binding down on disconnect.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := randID(8)
		outbox := make(chan types.ServerMessage, 32)
		logger := log.With(zap.String("client", clientID))
		logger.Info("connected")

		// Writer goroutine. The room owns outbox once joined and closes it
		// when this client is dropped or the room dies.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range outbox {
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// cur is the one room this connection belongs to. Only this reader
		// goroutine touches it.
		var cur *room.Room
		defer func() {
			if cur != nil {
				// The room closes outbox while handling the Leave.
				post(cur, room.Leave{PlayerID: clientID})
			} else {
				close(outbox)
			}
			logger.Info("disconnected")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeDirect(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}

			switch cm.Type {
			case "createRoom":
				if cur != nil {
					writeDirect(r.Context(), conn, types.ServerMessage{Type: "error", Error: "already in a room"})
					continue
				}
				created := make(chan hub.Created, 1)
				h.Inbox() <- hub.CreateRoom{Reply: created}
				c := <-created
				if err := joinRoom(c.Room, clientID, cm.DisplayName, outbox); err != nil {
					writeDirect(r.Context(), conn, types.ServerMessage{Type: "joinError", Error: joinErrorText(err)})
					continue
				}
				cur = c.Room
				writeDirect(r.Context(), conn, types.ServerMessage{Type: "roomCreated", Code: c.Code})

			case "joinRoom":
				if cur != nil {
					writeDirect(r.Context(), conn, types.ServerMessage{Type: "error", Error: "already in a room"})
					continue
				}
				reply := make(chan *room.Room, 1)
				h.Inbox() <- hub.GetRoom{Code: cm.RoomCode, Reply: reply}
				rm := <-reply
				if rm == nil {
					writeDirect(r.Context(), conn, types.ServerMessage{Type: "joinError", Error: "Room not found."})
					continue
				}
				if err := joinRoom(rm, clientID, cm.DisplayName, outbox); err != nil {
					writeDirect(r.Context(), conn, types.ServerMessage{Type: "joinError", Error: joinErrorText(err)})
					continue
				}
				cur = rm
				writeDirect(r.Context(), conn, types.ServerMessage{Type: "joinedRoom", Code: cm.RoomCode})

			case "startGame":
				if cur == nil {
					continue
				}
				post(cur, room.Start{PlayerID: clientID})

			case "turnOutcome":
				if cur == nil {
					continue
				}
				outcome, ok := parseOutcome(cm.Outcome)
				if !ok {
					writeDirect(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown outcome"})
					continue
				}
				post(cur, room.Outcome{TargetID: cm.TargetID, Outcome: outcome, Reason: cm.Reason})

			case "offer", "answer", "candidate":
				if cur == nil {
					continue
				}
				post(cur, room.Relay{
					Kind:     cm.Type,
					SenderID: clientID,
					TargetID: cm.TargetID,
					Payload:  cm.Payload,
				})

			default:
				writeDirect(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown type"})
			}
		}
	}
}

// joinRoom posts the Join and waits for the verdict, bailing out if the
// room shuts down underneath us.
func joinRoom(rm *room.Room, id, name string, outbox chan types.ServerMessage) error {
	if name == "" {
		name = "Anonymous"
	}
	reply := make(chan error, 1)
	select {
	case rm.Inbox() <- room.Join{Player: engine.Player{ID: id, Name: name}, Outbox: outbox, Reply: reply}:
	case <-rm.Done():
		return errRoomGone
	}
	select {
	case err := <-reply:
		return err
	case <-rm.Done():
		// The verdict may have raced the shutdown; prefer it if present.
		select {
		case err := <-reply:
			return err
		default:
			return errRoomGone
		}
	}
}

// post sends to a room without blocking forever on a dead one.
func post(rm *room.Room, m room.Msg) {
	select {
	case rm.Inbox() <- m:
	case <-rm.Done():
	}
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, engine.ErrRoomFull):
		return "Room is full."
	case errors.Is(err, engine.ErrGameAlreadyStarted):
		return "Game already started."
	default:
		return "Room not found."
	}
}

func parseOutcome(s string) (engine.Outcome, bool) {
	switch s {
	case "correct":
		return engine.OutcomeCorrect, true
	case "incorrect":
		return engine.OutcomeIncorrect, true
	default:
		return "", false
	}
}

func writeDirect(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
