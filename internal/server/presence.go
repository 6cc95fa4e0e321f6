package server

import (
	"time"

	"github.com/rs/zerolog/log"
)

type staleConnection struct {
	PlayerID int
}

// Heartbeat records that the player's client is alive. When the connection
// was marked inactive this flips it back and appends exactly one
// player-reconnected event; otherwise only the heartbeat timestamp moves.
// Each call also sweeps the game's other connections for staleness, so
// disconnect detection rides on whichever player pings next.
func (s *Server) Heartbeat(gameID, token string) (*Game, bool, error) {
	now := timeNowUTC()
	changed := false
	var playerID int
	var wentStale []staleConnection
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		player, ok := findPlayerByToken(game, token)
		if !ok {
			return errNotInGame
		}
		playerID = player.ID
		conn, ok := findConnection(game, player.ID)
		if !ok {
			return errNotInGame
		}
		conn.LastHeartbeat = now
		if !conn.Active {
			conn.Active = true
			conn.ActivityChangedAt = now
			appendEvent(game, eventPlayerReconnected, player.ID)
			changed = true
		}
		wentStale = sweepStale(game, now, s.staleAfter(), player.ID)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		log.Info().Str("game_id", gameID).Int("player_id", playerID).Msg("player reconnected")
		if err := s.persistConnectionFlip(game, playerID, true, eventPlayerReconnected); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("persist reconnect failed")
		}
	} else if err := s.persistHeartbeat(game, playerID, now); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist heartbeat failed")
	}
	for _, stale := range wentStale {
		log.Info().Str("game_id", gameID).Int("player_id", stale.PlayerID).Msg("player disconnected")
		if err := s.persistConnectionFlip(game, stale.PlayerID, false, eventPlayerDisconnected); err != nil {
			log.Warn().Err(err).Str("game_id", gameID).Msg("persist disconnect failed")
		}
	}
	if changed || len(wentStale) > 0 {
		s.broadcastRefresh(gameID)
	}
	return game, changed, nil
}

// sweepStale flips connections whose heartbeat is older than staleAfter.
// Re-running with no newly stale connections is a no-op, so no duplicate
// disconnect events are ever appended.
func sweepStale(game *Game, now time.Time, staleAfter time.Duration, exceptPlayerID int) []staleConnection {
	var flipped []staleConnection
	for i := range game.Connections {
		conn := &game.Connections[i]
		if conn.PlayerID == exceptPlayerID {
			continue
		}
		if !conn.Active {
			continue
		}
		if now.Sub(conn.LastHeartbeat) <= staleAfter {
			continue
		}
		conn.Active = false
		conn.ActivityChangedAt = now
		appendEvent(game, eventPlayerDisconnected, conn.PlayerID)
		flipped = append(flipped, staleConnection{PlayerID: conn.PlayerID})
	}
	return flipped
}

func (s *Server) staleAfter() time.Duration {
	return time.Duration(s.cfg.StaleAfterSeconds) * time.Second
}
