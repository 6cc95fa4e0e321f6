package server

import "time"

// phaseOrder is the only legal progression for a round. Transitions move
// strictly forward; the round task is the sole writer of Phase.
var phaseOrder = []string{
	phaseUploadPhoto,
	phaseSelectTarget,
	phaseGenerateWait,
	phaseVote,
	phaseResults,
}

func phaseIndex(phase string) int {
	for i, p := range phaseOrder {
		if p == phase {
			return i
		}
	}
	return -1
}

func phaseAtLeast(phase, floor string) bool {
	pi, fi := phaseIndex(phase), phaseIndex(floor)
	return pi >= 0 && fi >= 0 && pi >= fi
}

func (s *Server) phaseDuration(phase string) time.Duration {
	switch phase {
	case phaseUploadPhoto:
		return time.Duration(s.cfg.UploadSeconds) * time.Second
	case phaseSelectTarget:
		return time.Duration(s.cfg.SelectTargetSeconds) * time.Second
	case phaseGenerateWait:
		return time.Duration(s.cfg.GenerateTimeoutSeconds) * time.Second
	case phaseVote:
		return time.Duration(s.cfg.VoteSeconds) * time.Second
	case phaseResults:
		return time.Duration(s.cfg.ResultsSeconds) * time.Second
	default:
		return 0
	}
}

// secondsLeft is recomputed on every read from the phase-change timestamp;
// no countdown state is stored anywhere.
func (s *Server) secondsLeft(round *RoundState, now time.Time) int {
	if round == nil {
		return 0
	}
	limit := s.phaseDuration(round.Phase)
	elapsed := now.Sub(round.PhaseChangedAt)
	left := limit - elapsed
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

func currentRound(game *Game) *RoundState {
	if len(game.Rounds) == 0 {
		return nil
	}
	return &game.Rounds[len(game.Rounds)-1]
}

func setPhaseAt(round *RoundState, phase string, at time.Time) {
	round.Phase = phase
	if at.IsZero() {
		at = timeNowUTC()
	}
	round.PhaseChangedAt = at
}
