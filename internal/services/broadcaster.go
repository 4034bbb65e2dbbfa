package services

// Event is an auditable notification pushed to connected clients whenever
// the ledger or the pool changes.
type Event struct {
	Type   string         `json:"type"`
	Player string         `json:"player,omitempty"`
	GameID string         `json:"game_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

const (
	EventGameCreated         = "game_created"
	EventRandomnessRequested = "randomness_requested"
	EventRandomnessFulfilled = "randomness_fulfilled"
	EventGameWon             = "game_won"
	EventGameLost            = "game_lost"
	EventGameForceEnded      = "game_force_ended"
	EventWithdrawal          = "withdrawal"
)

type Broadcaster interface {
	Publish(event Event)
}

// NoopBroadcaster drops events; used when no websocket hub is wired in.
type NoopBroadcaster struct{}

func (NoopBroadcaster) Publish(Event) {}
