package server

import (
	"errors"
	"net/http"
)

type joinRequest struct {
	Name   string `json:"name"`
	Avatar int    `json:"avatar"`
}

type tokenRequest struct {
	PlayerToken string `json:"player_token"`
}

type photoRequest struct {
	PlayerToken string `json:"player_token"`
	PhotoKey    string `json:"photo_key"`
	Caption     string `json:"caption"`
}

type voteRequest struct {
	PlayerToken string `json:"player_token"`
	IdeaID      int    `json:"idea_id"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := validatePlayerName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	game, player, err := s.CreateGame(name, validateAvatar(req.Avatar))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, playerResponse(game, player))
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	summaries := s.store.ListGameSummaries()
	games := make([]map[string]any, 0, len(summaries))
	for _, summary := range summaries {
		games = append(games, map[string]any{
			"game_id":   summary.ID,
			"join_code": summary.JoinCode,
			"status":    summary.Status,
			"players":   summary.Players,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

func (s *Server) handleGameSubroutes(w http.ResponseWriter, r *http.Request) {
	gameID, action, ok := parseGamePath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method == http.MethodGet {
		switch action {
		case "":
			s.handleSnapshot(w, gameID)
		case "events":
			s.handleEvents(w, gameID)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
		return
	}

	switch action {
	case "join":
		s.handleJoin(w, r, gameID)
	case "start":
		s.handleStart(w, r, gameID)
	case "photos":
		s.handlePhotos(w, r, gameID)
	case "votes":
		s.handleVotes(w, r, gameID)
	case "heartbeat":
		s.handleHeartbeat(w, r, gameID)
	case "finish":
		s.handleEnd(w, r, gameID, s.FinishGame)
	case "abort":
		s.handleEnd(w, r, gameID, s.AbortGame)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, idOrCode string) {
	game, ok := s.store.ResolveGame(idOrCode)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	var snap map[string]any
	if _, err := s.store.UpdateGame(game.ID, func(g *Game) error {
		snap = s.snapshot(g)
		return nil
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// maxEventsReturned bounds the events response; the log itself keeps
// growing, clients only ever need the tail.
const maxEventsReturned = 100

func (s *Server) handleEvents(w http.ResponseWriter, idOrCode string) {
	game, ok := s.store.ResolveGame(idOrCode)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	events := make([]map[string]any, 0)
	if _, err := s.store.UpdateGame(game.ID, func(g *Game) error {
		start := len(g.Events) - maxEventsReturned
		if start < 0 {
			start = 0
		}
		for _, event := range g.Events[start:] {
			entry := map[string]any{
				"kind": event.Kind,
				"at":   event.At,
			}
			if event.PlayerID != 0 {
				entry["player_id"] = event.PlayerID
			}
			events = append(events, entry)
		}
		return nil
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, idOrCode string) {
	var req joinRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := validatePlayerName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	game, player, err := s.JoinGame(idOrCode, name, validateAvatar(req.Avatar))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse(game, player))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, gameID string) {
	var req tokenRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	game, err := s.StartRound(gameID, req.PlayerToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// The round task is already mutating the game, so the count is read
	// under the store lock rather than off the returned pointer.
	var rounds int
	if err := s.viewGame(game.ID, func(g *Game) {
		rounds = len(g.Rounds)
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"round":   rounds,
	})
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request, gameID string) {
	var req photoRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caption, err := validateCaption(req.Caption)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	game, err := s.SubmitPhoto(gameID, req.PlayerToken, req.PhotoKey, caption)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game_id": game.ID})
}

func (s *Server) handleVotes(w http.ResponseWriter, r *http.Request, gameID string) {
	var req voteRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	game, removed, err := s.ToggleVote(gameID, req.PlayerToken, req.IdeaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"idea_id": req.IdeaID,
		"removed": removed,
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, gameID string) {
	var req tokenRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	game, reconnected, err := s.Heartbeat(gameID, req.PlayerToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id":     game.ID,
		"reconnected": reconnected,
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request, gameID string, end func(gameID, token string) (*Game, error)) {
	var req tokenRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	game, err := end(gameID, req.PlayerToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": game.ID,
		"status":  game.Status,
	})
}

func playerResponse(game *Game, player *Player) map[string]any {
	return map[string]any{
		"game_id":      game.ID,
		"join_code":    game.JoinCode,
		"player_id":    player.ID,
		"player_token": player.Token,
		"is_host":      player.IsHost,
	}
}

// writeDomainError maps the domain sentinels onto HTTP statuses. Identity
// errors all come back as 404 so a response never confirms which part of
// (game, token) was wrong.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errGameNotFound),
		errors.Is(err, errPlayerNotFound),
		errors.Is(err, errNotInGame),
		errors.Is(err, errIdeaNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errNameTaken),
		errors.Is(err, errGameStarted),
		errors.Is(err, errNotHost),
		errors.Is(err, errGameFinished),
		errors.Is(err, errVotingClosed),
		errors.Is(err, errUploadsClosed),
		errors.Is(err, errPhotoDuplicate),
		errors.Is(err, errNoActiveRound):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errPhotoKeyMissing):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
