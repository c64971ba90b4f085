package handler

import "github.com/tillerman/parley/pkg/diplomacy"

// BroadcastGameEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastGameEvent(gameID string, eventType string, data any) {
	h.BroadcastToGame(gameID, WSEvent{
		Type:   eventType,
		GameID: gameID,
		Data:   data,
	})
}

// PhaseResolvedPayload is the typed body of an EventPhaseResolved broadcast:
// the outcome of one movement/retreat/build adjudication, plus the resulting
// board in DFEN so clients can resync without a separate state fetch.
type PhaseResolvedPayload struct {
	DFEN      string                    `json:"dfen"`
	Orders    []diplomacy.ResolvedOrder `json:"orders"`
	Dislodged []diplomacy.DislodgedUnit `json:"dislodged,omitempty"`
}

// BroadcastPhaseResolved sends a typed phase-resolution event to every
// connection subscribed to gameID, carrying the adjudicated orders and the
// resulting board state encoded as DFEN (§6.1's canonical wire snapshot)
// rather than a server-internal JSON shape.
func (h *Hub) BroadcastPhaseResolved(gameID string, gs *diplomacy.GameState, resolved []diplomacy.ResolvedOrder, dislodged []diplomacy.DislodgedUnit) {
	h.BroadcastGameEvent(gameID, EventPhaseResolved, PhaseResolvedPayload{
		DFEN:      diplomacy.EncodeDFEN(gs),
		Orders:    resolved,
		Dislodged: dislodged,
	})
}
