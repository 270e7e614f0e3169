package types

// Client -> Server
// createRoom:
//   display_name: string
//
// joinRoom:
//   room_code: string
//   display_name: string
//
// startGame: {} (host only; silently ignored otherwise)
//
// turnOutcome:
//   target_id: string   // must be the current turn-holder
//   outcome: "correct" | "incorrect"
//   reason: string      // optional, shown in the narration
//
// offer / answer / candidate:
//   target_id: string   // optional; empty broadcasts to the rest of the room
//   payload: opaque JSON (SDP or ICE candidate), relayed untouched

// Server -> Client
// roomCreated / joinedRoom:
//   code: string
//
// joinError:
//   error: "Room not found." | "Room is full." | "Game already started."
//
// updatePlayers:
//   players: [{ id, name, score }]  // array order is turn order
//
// updateGameState:
//   state: { phase, status, players, host_id, turn_index,
//            current_player_id, letter, generation, rules }
//
// gameStarted: {}
//
// nextTurn:
//   player_id: string
//   letter: string
//
// narration:
//   text: string
//
// timerTick:
//   seconds: number  // cosmetic; carries no authority
//
// userJoined:
//   players: [the new player]
//
// userLeft:
//   player_id: string
//
// offer / answer / candidate:
//   from: string
//   payload: opaque JSON, exactly as sent
