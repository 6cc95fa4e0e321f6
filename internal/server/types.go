package server

import "time"

const (
	statusWaiting    = "waiting"
	statusInProgress = "in_progress"
	statusFinished   = "finished"
	statusAborted    = "aborted"
)

const (
	phaseUploadPhoto  = "upload-photo"
	phaseSelectTarget = "select-target"
	phaseGenerateWait = "generate-wait"
	phaseVote         = "vote"
	phaseResults      = "results"
)

type Game struct {
	ID          string
	DBID        uint
	JoinCode    string
	Status      string
	HostID      int
	Players     []Player
	Connections []ConnectionState
	Rounds      []RoundState
	Events      []EventEntry
}

type Player struct {
	ID       int
	DBID     uint
	Name     string
	Avatar   int
	Token    string
	IsHost   bool
	JoinedAt time.Time
}

// ConnectionState tracks one player's liveness within a game.
type ConnectionState struct {
	PlayerID          int
	DBID              uint
	Active            bool
	LastHeartbeat     time.Time
	ActivityChangedAt time.Time
	CreatedAt         time.Time
}

type RoundState struct {
	Count          int
	DBID           uint
	Phase          string
	PhaseChangedAt time.Time
	Photos         []PhotoEntry
	Ideas          []IdeaEntry
	Votes          []VoteEntry
	ResultIdeaIDs  []int
	Poem           string
	PoemDBID       uint
}

type PhotoEntry struct {
	PlayerID      int
	DBID          uint
	StorageKey    string
	Caption       string
	IsRoastTarget bool
}

type IdeaEntry struct {
	ID   int
	DBID uint
	Text string
}

type VoteEntry struct {
	PlayerID int
	IdeaID   int
	DBID     uint
}

type EventEntry struct {
	Kind     string
	PlayerID int
	At       time.Time
}

type GameSummary struct {
	ID       string
	JoinCode string
	Status   string
	Players  int
}
