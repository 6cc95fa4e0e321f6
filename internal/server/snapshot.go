package server

import "time"

// snapshot is the full game view clients re-fetch after each refresh
// signal. It hides information the current phase has not revealed yet: the
// roast target before select-target, ideas before voting opens.
func (s *Server) snapshot(game *Game) map[string]any {
	now := timeNowUTC()
	players := make([]map[string]any, 0, len(game.Players))
	for _, player := range game.Players {
		connected := false
		if conn, ok := findConnection(game, player.ID); ok {
			connected = conn.Active
		}
		players = append(players, map[string]any{
			"id":        player.ID,
			"name":      player.Name,
			"avatar":    player.Avatar,
			"is_host":   player.IsHost,
			"connected": connected,
		})
	}
	snap := map[string]any{
		"game_id":   game.ID,
		"join_code": game.JoinCode,
		"status":    game.Status,
		"players":   players,
		"rounds":    len(game.Rounds),
	}
	if round := currentRound(game); round != nil {
		snap["round"] = s.roundSnapshot(round, now)
	}
	return snap
}

func (s *Server) roundSnapshot(round *RoundState, now time.Time) map[string]any {
	photos := make([]map[string]any, 0, len(round.Photos))
	for _, photo := range round.Photos {
		entry := map[string]any{
			"player_id": photo.PlayerID,
			"key":       photo.StorageKey,
			"caption":   photo.Caption,
		}
		if phaseAtLeast(round.Phase, phaseSelectTarget) {
			entry["is_roast_target"] = photo.IsRoastTarget
		}
		photos = append(photos, entry)
	}
	snap := map[string]any{
		"count":         round.Count,
		"phase":         round.Phase,
		"seconds_left":  s.secondsLeft(round, now),
		"seconds_total": int(s.phaseDuration(round.Phase) / time.Second),
		"photos":        photos,
	}
	if phaseAtLeast(round.Phase, phaseVote) {
		ideas := make([]map[string]any, 0, len(round.Ideas))
		for _, idea := range round.Ideas {
			ideas = append(ideas, map[string]any{
				"id":    idea.ID,
				"text":  idea.Text,
				"votes": voteCount(round, idea.ID),
			})
		}
		snap["ideas"] = ideas
	}
	if round.Phase == phaseResults {
		results := make([]map[string]any, 0, len(round.ResultIdeaIDs))
		for _, id := range round.ResultIdeaIDs {
			if idea, ok := findIdea(round, id); ok {
				results = append(results, map[string]any{
					"idea_id": idea.ID,
					"text":    idea.Text,
					"votes":   voteCount(round, idea.ID),
				})
			}
		}
		snap["results"] = results
		if round.Poem != "" {
			snap["poem"] = round.Poem
		}
	}
	return snap
}
