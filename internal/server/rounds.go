package server

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	errNotHost        = errors.New("only the host can do that")
	errGameFinished   = errors.New("game already finished")
	errRoundCancelled = errors.New("round cancelled")
	errNoActiveRound  = errors.New("round not started")
)

// StartRound creates the next round and returns immediately; the phase
// progression runs in a goroutine owned by the server and cancellable via
// the context registered in s.tasks. Starting a round while one is running
// replaces it with count+1.
func (s *Server) StartRound(gameID, token string) (*Game, error) {
	var count int
	var hostID int
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		player, ok := findPlayerByToken(game, token)
		if !ok {
			return errPlayerNotFound
		}
		if !player.IsHost {
			return errNotHost
		}
		if game.Status != statusWaiting && game.Status != statusInProgress {
			return errGameFinished
		}
		hostID = player.ID
		count = len(game.Rounds) + 1
		if game.Status == statusWaiting {
			appendEvent(game, eventGameStarted, player.ID)
		}
		game.Status = statusInProgress
		game.Rounds = append(game.Rounds, RoundState{
			Count:          count,
			Phase:          phaseUploadPhoto,
			PhaseChangedAt: timeNowUTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.persistRound(game); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist round failed")
	}
	if err := s.persistPhase(game, eventRoundPhaseChanged, EventPayload{
		RoundCount: count,
		Phase:      phaseUploadPhoto,
		PlayerID:   hostID,
	}); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist phase failed")
	}
	log.Info().Str("game_id", gameID).Int("round", count).Msg("round started")
	s.broadcastRefresh(gameID)

	ctx := s.registerRoundTask(gameID)
	go s.runRound(ctx, gameID, count)
	return game, nil
}

// registerRoundTask replaces any running round task for the game with a
// fresh cancellable context.
func (s *Server) registerRoundTask(gameID string) context.Context {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if cancel, ok := s.tasks[gameID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.tasks[gameID] = cancel
	return ctx
}

func (s *Server) cancelRoundTask(gameID string) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	if cancel, ok := s.tasks[gameID]; ok {
		cancel()
		delete(s.tasks, gameID)
	}
}

// runRound drives a single round through its phases. It is the only writer
// of the round's phase, so transitions are strictly sequential. Every
// suspension point observes ctx and the game status, which makes external
// aborts take effect at the next wakeup.
func (s *Server) runRound(ctx context.Context, gameID string, count int) {
	submitted, err := s.waitForFirstPhoto(ctx, gameID, count)
	if err != nil {
		return
	}
	if !submitted {
		s.abandonRound(gameID, count)
		return
	}

	target, err := s.pickTargetPhoto(gameID, count)
	if err != nil {
		return
	}
	ideasCh := s.launchIdeaGeneration(ctx, target, s.cfg.IdeasPerRound)

	if !s.enterPhase(gameID, count, phaseSelectTarget) {
		return
	}
	if !sleepCtx(ctx, s.phaseDuration(phaseSelectTarget)) {
		return
	}

	if !s.enterPhase(gameID, count, phaseGenerateWait) {
		return
	}
	ideas, err := s.awaitIdeas(ctx, ideasCh, s.phaseDuration(phaseGenerateWait))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn().Err(err).Str("game_id", gameID).Int("round", count).
			Msg("idea generation failed, using fallback roasts")
		ideas = fallbackRoastIdeas(s.cfg.IdeasPerRound)
	}
	if err := s.storeIdeas(gameID, count, ideas); err != nil {
		return
	}

	if !s.enterPhase(gameID, count, phaseVote) {
		return
	}
	if !sleepCtx(ctx, s.phaseDuration(phaseVote)) {
		return
	}

	if err := s.finishRound(gameID, count); err != nil {
		return
	}
	s.composeRoast(ctx, gameID, count, target)
}

// waitForFirstPhoto polls until at least one photo exists for the round or
// the upload window closes. A false result with nil error means timeout.
func (s *Server) waitForFirstPhoto(ctx context.Context, gameID string, count int) (bool, error) {
	deadline := time.NewTimer(s.phaseDuration(phaseUploadPhoto))
	defer deadline.Stop()
	ticker := time.NewTicker(time.Duration(s.cfg.PhotoPollMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		if submitted, err := s.roundHasPhotos(gameID, count); err != nil {
			return false, err
		} else if submitted {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

func (s *Server) roundHasPhotos(gameID string, count int) (bool, error) {
	submitted := false
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		submitted = len(round.Photos) > 0
		return nil
	})
	return submitted, err
}

// abandonRound deletes a round that received no photos and reverts the game
// to waiting. A timeout here is normal control flow, not an error.
func (s *Server) abandonRound(gameID string, count int) {
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		if _, err := activeRound(game, count); err != nil {
			return err
		}
		game.Rounds = game.Rounds[:len(game.Rounds)-1]
		game.Status = statusWaiting
		appendEvent(game, eventRoundAbandoned, 0)
		return nil
	})
	if err != nil {
		return
	}
	if err := s.persistRoundDeletion(game, count, EventPayload{
		RoundCount: count,
		Reason:     "no photos submitted",
	}); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist round deletion failed")
	}
	log.Info().Str("game_id", gameID).Int("round", count).Msg("round abandoned, no photos")
	s.broadcastRefresh(gameID)
}

// pickTargetPhoto marks one submitted photo, chosen uniformly at random, as
// the roast target. Photos submitted after this point are never targets.
func (s *Server) pickTargetPhoto(gameID string, count int) (PhotoEntry, error) {
	var target PhotoEntry
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		if len(round.Photos) == 0 {
			return errNoActiveRound
		}
		idx := rand.Intn(len(round.Photos))
		round.Photos[idx].IsRoastTarget = true
		target = round.Photos[idx]
		return nil
	})
	if err != nil {
		return PhotoEntry{}, err
	}
	if err := s.persistTargetPhoto(game, count, target.PlayerID); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist target photo failed")
	}
	log.Info().Str("game_id", gameID).Int("round", count).
		Int("player_id", target.PlayerID).Msg("roast target selected")
	return target, nil
}

// enterPhase advances the round and broadcasts. It reports false when the
// round was cancelled, replaced, or the game left in_progress.
func (s *Server) enterPhase(gameID string, count int, phase string) bool {
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		setPhaseAt(round, phase, timeNowUTC())
		appendEvent(game, eventRoundPhaseChanged, 0)
		return nil
	})
	if err != nil {
		return false
	}
	if err := s.persistPhase(game, eventRoundPhaseChanged, EventPayload{
		RoundCount: count,
		Phase:      phase,
	}); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist phase failed")
	}
	log.Info().Str("game_id", gameID).Int("round", count).Str("phase", phase).Msg("phase advanced")
	s.broadcastRefresh(gameID)
	return true
}

func (s *Server) storeIdeas(gameID string, count int, texts []string) error {
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		for _, text := range texts {
			round.Ideas = append(round.Ideas, IdeaEntry{
				ID:   len(round.Ideas) + 1,
				Text: text,
			})
		}
		appendEvent(game, eventIdeasReady, 0)
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.persistIdeas(game, count); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist ideas failed")
	}
	return nil
}

// finishRound ranks the ideas and moves the round to its terminal phase.
func (s *Server) finishRound(gameID string, count int) error {
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		round.ResultIdeaIDs = topIdeaIDs(round, s.cfg.TopIdeas)
		setPhaseAt(round, phaseResults, timeNowUTC())
		appendEvent(game, eventRoundPhaseChanged, 0)
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.persistPhase(game, eventRoundPhaseChanged, EventPayload{
		RoundCount: count,
		Phase:      phaseResults,
	}); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist phase failed")
	}
	log.Info().Str("game_id", gameID).Int("round", count).Msg("round results ready")
	s.broadcastRefresh(gameID)
	return nil
}

// composeRoast turns the round's top-voted ideas into the final poem. The
// round is already terminal, so failure only costs the poem.
func (s *Server) composeRoast(ctx context.Context, gameID string, count int, target PhotoEntry) {
	var ideas []string
	_, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		for _, id := range round.ResultIdeaIDs {
			if idea, ok := findIdea(round, id); ok {
				ideas = append(ideas, idea.Text)
			}
		}
		return nil
	})
	if err != nil || len(ideas) == 0 {
		return
	}
	genCtx, cancel := context.WithTimeout(ctx, s.phaseDuration(phaseGenerateWait))
	defer cancel()
	poem, err := s.generatePoem(genCtx, target, ideas, s.cfg.RoastLanguage)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("roast poem generation failed")
		return
	}
	game, err := s.store.UpdateGame(gameID, func(game *Game) error {
		round, err := activeRound(game, count)
		if err != nil {
			return err
		}
		round.Poem = poem
		appendEvent(game, eventRoastReady, 0)
		return nil
	})
	if err != nil {
		return
	}
	if err := s.persistRoast(game, count); err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("persist roast failed")
	}
	s.broadcastRefresh(gameID)
}

// activeRound resolves the round a task owns, failing when the game was
// aborted or the round replaced. Tasks stop on the first such failure.
func activeRound(game *Game, count int) (*RoundState, error) {
	if game.Status == statusAborted || game.Status == statusFinished {
		return nil, errRoundCancelled
	}
	round := currentRound(game)
	if round == nil || round.Count != count {
		return nil, errRoundCancelled
	}
	return round, nil
}

func findIdea(round *RoundState, ideaID int) (*IdeaEntry, bool) {
	for i := range round.Ideas {
		if round.Ideas[i].ID == ideaID {
			return &round.Ideas[i], true
		}
	}
	return nil, false
}

// sleepCtx waits d or until the context is cancelled. Reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
