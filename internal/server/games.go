package server

import "github.com/rs/zerolog/log"

// CreateGame starts a fresh lobby with the creator joined as host.
func (s *Server) CreateGame(name string, avatar int) (*Game, *Player, error) {
	game := s.store.CreateGame()
	if err := s.persistGame(game); err != nil {
		return nil, nil, err
	}
	game, player, err := s.JoinGame(game.ID, name, avatar)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("game_id", game.ID).Str("join_code", game.JoinCode).Msg("game created")
	return game, player, nil
}

// JoinGame adds a player by game id or join code and issues their identity
// token. The token is the credential for every later call.
func (s *Server) JoinGame(idOrCode, name string, avatar int) (*Game, *Player, error) {
	token := newPlayerToken()
	game, player, err := s.store.AddPlayer(idOrCode, name, avatar, token)
	if err != nil {
		return nil, nil, err
	}
	_, _ = s.store.UpdateGame(game.ID, func(g *Game) error {
		appendEvent(g, eventPlayerJoined, player.ID)
		return nil
	})
	if err := s.persistPlayer(game, player); err != nil {
		log.Warn().Err(err).Str("game_id", game.ID).Msg("persist player failed")
	}
	log.Info().Str("game_id", game.ID).Str("player", player.Name).
		Bool("host", player.IsHost).Msg("player joined")
	s.broadcastRefresh(game.ID)
	return game, player, nil
}

// FinishGame and AbortGame both end the game; abort additionally cancels a
// running round task so it stops at its next suspension point.
func (s *Server) FinishGame(gameID, token string) (*Game, error) {
	return s.endGame(gameID, token, statusFinished, eventGameFinished)
}

func (s *Server) AbortGame(gameID, token string) (*Game, error) {
	return s.endGame(gameID, token, statusAborted, eventGameAborted)
}

func (s *Server) endGame(gameID, token, status, eventKind string) (*Game, error) {
	var playerID int
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		player, ok := findPlayerByToken(game, token)
		if !ok {
			return errNotInGame
		}
		if !player.IsHost {
			return errNotHost
		}
		if game.Status == statusFinished || game.Status == statusAborted {
			return errGameFinished
		}
		playerID = player.ID
		game.Status = status
		appendEvent(game, eventKind, player.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cancelRoundTask(gameID)
	if err := s.persistStatus(game, eventKind, EventPayload{
		PlayerID: playerID,
		Reason:   status,
	}); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist status failed")
	}
	log.Info().Str("game_id", gameID).Str("status", status).Msg("game ended")
	s.broadcastRefresh(gameID)
	return game, nil
}
