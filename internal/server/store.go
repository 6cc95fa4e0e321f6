package server

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	errGameNotFound   = errors.New("game not found")
	errPlayerNotFound = errors.New("player not found")
	errNameTaken      = errors.New("player name already taken")
	errGameStarted    = errors.New("game already started")
)

// Store is the in-memory authoritative state. Persistence writes through to
// Postgres but reads during a game never leave this map.
type Store struct {
	mu           sync.Mutex
	nextID       int
	nextPlayerID int
	games        map[string]*Game
}

func NewStore() *Store {
	return &Store{
		nextID:       1,
		nextPlayerID: 1,
		games:        make(map[string]*Game),
	}
}

func (s *Store) CreateGame() *Game {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "game-" + strconv.Itoa(s.nextID)
	s.nextID++
	code := newJoinCode()
	for s.findByJoinCodeLocked(code) != nil {
		code = newJoinCode()
	}
	game := &Game{
		ID:       id,
		JoinCode: code,
		Status:   statusWaiting,
	}
	s.games[id] = game
	return game
}

func (s *Store) GetGame(id string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	return game, ok
}

// ResolveGame accepts either a game id or a join code. Codes match
// case-insensitively.
func (s *Store) ResolveGame(idOrCode string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game, ok := s.games[idOrCode]; ok {
		return game, true
	}
	game := s.findByJoinCodeLocked(idOrCode)
	return game, game != nil
}

func (s *Store) findByJoinCodeLocked(code string) *Game {
	code = strings.ToUpper(code)
	for _, game := range s.games {
		if game.JoinCode == code {
			return game
		}
	}
	return nil
}

// UpdateGame runs update under the store lock, serializing every mutation of
// a game's row-equivalent state.
func (s *Store) UpdateGame(id string, update func(game *Game) error) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return nil, errGameNotFound
	}
	if err := update(game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Store) UpdateGameID(game *Game, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if game.ID == newID {
		return
	}
	delete(s.games, game.ID)
	game.ID = newID
	s.games[newID] = game
}

// AddPlayer joins a player to a game by id or code. The first player becomes
// the host. Display names are unique within a game; joining is only allowed
// while the game is waiting for players.
func (s *Store) AddPlayer(idOrCode, name string, avatar int, token string) (*Game, *Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[idOrCode]
	if !ok {
		game = s.findByJoinCodeLocked(idOrCode)
		if game == nil {
			return nil, nil, errGameNotFound
		}
	}

	for i := range game.Players {
		if strings.EqualFold(game.Players[i].Name, name) {
			return nil, nil, errNameTaken
		}
	}
	if game.Status != statusWaiting {
		return nil, nil, errGameStarted
	}

	now := timeNowUTC()
	player := Player{
		ID:       s.nextPlayerID,
		Name:     name,
		Avatar:   avatar,
		Token:    token,
		IsHost:   len(game.Players) == 0,
		JoinedAt: now,
	}
	s.nextPlayerID++
	game.Players = append(game.Players, player)
	if player.IsHost {
		game.HostID = player.ID
	}
	game.Connections = append(game.Connections, ConnectionState{
		PlayerID:          player.ID,
		Active:            true,
		LastHeartbeat:     now,
		ActivityChangedAt: now,
		CreatedAt:         now,
	})
	return game, &game.Players[len(game.Players)-1], nil
}

func (s *Store) ListGameSummaries() []GameSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]GameSummary, 0, len(s.games))
	for _, game := range s.games {
		list = append(list, GameSummary{
			ID:       game.ID,
			JoinCode: game.JoinCode,
			Status:   game.Status,
			Players:  len(game.Players),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return gameSortKey(list[i].ID) < gameSortKey(list[j].ID)
	})
	return list
}

func gameSortKey(id string) int {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return 0
	}
	value, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return value
}

func findPlayer(game *Game, playerID int) (*Player, bool) {
	for i := range game.Players {
		if game.Players[i].ID == playerID {
			return &game.Players[i], true
		}
	}
	return nil, false
}

func findPlayerByToken(game *Game, token string) (*Player, bool) {
	if token == "" {
		return nil, false
	}
	for i := range game.Players {
		if game.Players[i].Token == token {
			return &game.Players[i], true
		}
	}
	return nil, false
}

func findConnection(game *Game, playerID int) (*ConnectionState, bool) {
	for i := range game.Connections {
		if game.Connections[i].PlayerID == playerID {
			return &game.Connections[i], true
		}
	}
	return nil, false
}

func timeNowUTC() time.Time {
	return time.Now().UTC()
}
