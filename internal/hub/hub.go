package hub

import (
	"context"
	"crypto/rand"
	"math/big"

	"go.uber.org/zap"

	"antakshari-backend/internal/room"
)

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Reply chan Created
}

type Created struct {
	Code string
	Room *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the code -> room map. All access goes through its loop, so
// concurrent creates serialize and codes stay unique among live rooms.
type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	roomCfg room.Config
	codeLen int
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, roomCfg room.Config, codeLen int, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		roomCfg: roomCfg,
		codeLen: codeLen,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				code := h.freshCode()
				rm := room.New(h.ctx, code, h.roomCfg, nil, h.log, func() {
					h.post(RemoveRoom{Code: code})
				})
				h.rooms[code] = rm
				h.log.Info("room created", zap.String("room", code))
				msg.Reply <- Created{Code: code, Room: rm}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.Code)
				h.log.Info("room removed", zap.String("room", msg.Code))

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- room.Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
				return
			}
		}
	}
}

// freshCode draws codes until one misses every live room. Codes free up
// for reuse once their room is removed.
func (h *Hub) freshCode() string {
	for {
		code, err := GenerateCode(h.codeLen)
		if err != nil {
			// crypto/rand failing means the process is in real trouble;
			// keep retrying rather than hand out a guessable code.
			continue
		}
		if _, taken := h.rooms[code]; !taken {
			return code
		}
		h.log.Debug("code collision, redrawing", zap.String("room", code))
	}
}

// post re-enqueues onto our own inbox from room goroutines.
func (h *Hub) post(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func GenerateCode(length int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, length)
	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}
