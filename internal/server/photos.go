package server

import (
	"errors"

	"github.com/rs/zerolog/log"
)

var (
	errUploadsClosed   = errors.New("photos are not being accepted in this phase")
	errPhotoDuplicate  = errors.New("photo already submitted for this round")
	errPhotoKeyMissing = errors.New("photo key is required")
)

// SubmitPhoto attaches an already-stored photo (referenced by its opaque
// storage key) to the current round. One photo per player per round.
func (s *Server) SubmitPhoto(gameID, token, storageKey, caption string) (*Game, error) {
	if storageKey == "" {
		return nil, errPhotoKeyMissing
	}
	var playerID int
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		player, ok := findPlayerByToken(game, token)
		if !ok {
			return errNotInGame
		}
		playerID = player.ID
		if game.Status != statusInProgress {
			return errUploadsClosed
		}
		round := currentRound(game)
		if round == nil || round.Phase != phaseUploadPhoto {
			return errUploadsClosed
		}
		for _, photo := range round.Photos {
			if photo.PlayerID == player.ID {
				return errPhotoDuplicate
			}
		}
		round.Photos = append(round.Photos, PhotoEntry{
			PlayerID:   player.ID,
			StorageKey: storageKey,
			Caption:    caption,
		})
		appendEvent(game, eventPhotoSubmitted, player.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.persistPhoto(game, playerID, storageKey, caption); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Int("player_id", playerID).
			Msg("persist photo failed")
	}
	log.Info().Str("game_id", gameID).Int("player_id", playerID).Msg("photo submitted")
	s.broadcastRefresh(gameID)
	return game, nil
}
