package server

const (
	eventGameCreated        = "game-created"
	eventGameStarted        = "game-started"
	eventGameFinished       = "game-finished"
	eventGameAborted        = "game-aborted"
	eventPlayerJoined       = "player-joined"
	eventPlayerDisconnected = "player-disconnected"
	eventPlayerReconnected  = "player-reconnected"
	eventRoundPhaseChanged  = "round-phase-changed"
	eventRoundAbandoned     = "round-abandoned"
	eventPhotoSubmitted     = "photo-submitted"
	eventIdeasReady         = "ideas-ready"
	eventVoteToggled        = "vote-toggled"
	eventRoastReady         = "roast-ready"
)

type EventPayload struct {
	GameID      string `json:"game_id,omitempty"`
	JoinCode    string `json:"join_code,omitempty"`
	PlayerName  string `json:"player,omitempty"`
	PlayerID    int    `json:"player_id,omitempty"`
	RoundCount  int    `json:"round_count,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PhotoKey    string `json:"photo_key,omitempty"`
	IdeaID      int    `json:"idea_id,omitempty"`
	VoteRemoved bool   `json:"vote_removed,omitempty"`
	Count       int    `json:"count,omitempty"`
}

// appendEvent records a domain event on the game's append-only in-memory
// log. Callers holding the store lock use this; the database row is written
// separately by persistEvent.
func appendEvent(game *Game, kind string, playerID int) {
	game.Events = append(game.Events, EventEntry{
		Kind:     kind,
		PlayerID: playerID,
		At:       timeNowUTC(),
	})
}
