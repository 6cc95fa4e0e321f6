package server

import (
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
)

var (
	errIdeaNotFound = errors.New("idea not found")
	errVotingClosed = errors.New("voting is not open")
	errNotInGame    = errors.New("player is not in this game")
)

// ToggleVote removes the player's vote for the idea if present, otherwise
// casts it. The (player, idea) pair never holds more than one vote.
func (s *Server) ToggleVote(gameID, token string, ideaID int) (*Game, bool, error) {
	removed := false
	var playerID int
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		player, ok := findPlayerByToken(game, token)
		if !ok {
			return errNotInGame
		}
		playerID = player.ID
		if game.Status != statusInProgress {
			return errVotingClosed
		}
		round := currentRound(game)
		if round == nil || round.Phase != phaseVote {
			return errVotingClosed
		}
		if _, ok := findIdea(round, ideaID); !ok {
			return errIdeaNotFound
		}
		for i := range round.Votes {
			if round.Votes[i].PlayerID == player.ID && round.Votes[i].IdeaID == ideaID {
				round.Votes = append(round.Votes[:i], round.Votes[i+1:]...)
				removed = true
				appendEvent(game, eventVoteToggled, player.ID)
				return nil
			}
		}
		round.Votes = append(round.Votes, VoteEntry{PlayerID: player.ID, IdeaID: ideaID})
		appendEvent(game, eventVoteToggled, player.ID)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if err := s.persistVoteToggle(game, playerID, ideaID, removed); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Int("player_id", playerID).
			Msg("persist vote failed")
	}
	s.broadcastRefresh(gameID)
	return game, removed, nil
}

func voteCount(round *RoundState, ideaID int) int {
	count := 0
	for _, vote := range round.Votes {
		if vote.IdeaID == ideaID {
			count++
		}
	}
	return count
}

// topIdeaIDs ranks ideas by vote count, breaking ties by creation order so
// the earliest submitted idea wins. The ordering is deterministic for a
// fixed vote distribution.
func topIdeaIDs(round *RoundState, n int) []int {
	ids := make([]int, 0, len(round.Ideas))
	for _, idea := range round.Ideas {
		ids = append(ids, idea.ID)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ci, cj := voteCount(round, ids[i]), voteCount(round, ids[j])
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	if n < len(ids) {
		ids = ids[:n]
	}
	return ids
}
