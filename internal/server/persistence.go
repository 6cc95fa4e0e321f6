package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roast-roulette/internal/db"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// The store is authoritative; everything here writes through to Postgres
// and no-ops when the server runs without a database. The round task keeps
// mutating game state while these helpers run, so each one snapshots what
// it needs under the store lock, does its database I/O on the copies, and
// writes row ids back under the lock again. Game ids are stable once
// creation finishes, which makes them safe keys here.

// viewGame runs read under the store lock.
func (s *Server) viewGame(gameID string, read func(*Game)) error {
	_, err := s.store.UpdateGame(gameID, func(g *Game) error {
		read(g)
		return nil
	})
	return err
}

func (s *Server) persistGame(game *Game) error {
	if s.db == nil {
		return nil
	}
	record := db.Game{
		JoinCode: game.JoinCode,
		Status:   game.Status,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	_ = s.viewGame(game.ID, func(g *Game) {
		g.DBID = record.ID
	})
	// Rename happens before the game is announced, so the id is settled by
	// the time anything else can race on it.
	newID := fmt.Sprintf("game-%d", record.ID)
	if game.ID != newID {
		s.store.UpdateGameID(game, newID)
	}
	return s.persistEvent(game.ID, eventGameCreated, EventPayload{
		GameID:   game.ID,
		JoinCode: game.JoinCode,
	})
}

func (s *Server) persistPlayer(game *Game, player *Player) error {
	if s.db == nil {
		return nil
	}
	gameDBID, err := s.gameDBID(game.ID)
	if err != nil {
		return err
	}
	var snap Player
	found := false
	if err := s.viewGame(game.ID, func(g *Game) {
		if p, ok := findPlayer(g, player.ID); ok {
			snap = *p
			found = true
		}
	}); err != nil {
		return err
	}
	if !found || snap.DBID != 0 {
		return nil
	}
	record := db.Player{
		GameID:       gameDBID,
		Name:         snap.Name,
		Avatar:       snap.Avatar,
		SessionToken: snap.Token,
		IsHost:       snap.IsHost,
		JoinedAt:     snap.JoinedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if !isUniqueViolation(err) {
			return err
		}
		existing, lookupErr := s.findPlayerDBID(gameDBID, snap.Name)
		if lookupErr != nil || existing == 0 {
			return err
		}
		record.ID = existing
	}
	conn := db.Connection{
		GameID:            gameDBID,
		PlayerID:          record.ID,
		IsActive:          true,
		LastHeartbeat:     snap.JoinedAt,
		ActivityChangedAt: snap.JoinedAt,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&conn).Error; err != nil {
		return err
	}
	_ = s.viewGame(game.ID, func(g *Game) {
		if p, ok := findPlayer(g, player.ID); ok {
			p.DBID = record.ID
		}
		if state, ok := findConnection(g, player.ID); ok {
			state.DBID = conn.ID
		}
	})
	return s.persistEvent(game.ID, eventPlayerJoined, EventPayload{
		PlayerName: snap.Name,
		PlayerID:   player.ID,
	})
}

// persistPhase writes both the game status and the current round's phase,
// then appends the event row.
func (s *Server) persistPhase(game *Game, eventKind string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	gameDBID, err := s.gameDBID(game.ID)
	if err != nil {
		return err
	}
	if err := s.persistRound(game); err != nil {
		return err
	}
	var status, phase string
	var changedAt time.Time
	var roundDBID uint
	if err := s.viewGame(game.ID, func(g *Game) {
		status = g.Status
		if round := currentRound(g); round != nil {
			roundDBID = round.DBID
			phase = round.Phase
			changedAt = round.PhaseChangedAt
		}
	}); err != nil {
		return err
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", gameDBID).
		Update("status", status).Error; err != nil {
		return err
	}
	if roundDBID != 0 {
		updates := map[string]any{
			"phase":            phase,
			"phase_changed_at": changedAt,
		}
		if err := s.db.Model(&db.Round{}).Where("id = ?", roundDBID).
			Updates(updates).Error; err != nil {
			return err
		}
	}
	return s.persistEvent(game.ID, eventKind, payload)
}

func (s *Server) persistStatus(game *Game, eventKind string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	gameDBID, err := s.gameDBID(game.ID)
	if err != nil {
		return err
	}
	var status string
	if err := s.viewGame(game.ID, func(g *Game) {
		status = g.Status
	}); err != nil {
		return err
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", gameDBID).
		Update("status", status).Error; err != nil {
		return err
	}
	return s.persistEvent(game.ID, eventKind, payload)
}

func (s *Server) persistRound(game *Game) error {
	if s.db == nil {
		return nil
	}
	var count int
	var dbid uint
	var phase string
	var changedAt time.Time
	hasRound := false
	if err := s.viewGame(game.ID, func(g *Game) {
		if round := currentRound(g); round != nil {
			count = round.Count
			dbid = round.DBID
			phase = round.Phase
			changedAt = round.PhaseChangedAt
			hasRound = true
		}
	}); err != nil {
		return err
	}
	if !hasRound || dbid != 0 {
		return nil
	}
	gameDBID, err := s.gameDBID(game.ID)
	if err != nil {
		return err
	}
	record := db.Round{
		GameID:         gameDBID,
		Count:          count,
		Phase:          phase,
		PhaseChangedAt: changedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}
	// The round may have been abandoned while the insert ran; skip the
	// write-back when it is gone.
	return s.viewGame(game.ID, func(g *Game) {
		if round := roundByCount(g, count); round != nil {
			round.DBID = record.ID
		}
	})
}

// persistRoundDeletion removes the abandoned round row (photos cascade) and
// reverts the stored game status.
func (s *Server) persistRoundDeletion(game *Game, count int, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	gameDBID, err := s.gameDBID(game.ID)
	if err != nil {
		return err
	}
	var status string
	if err := s.viewGame(game.ID, func(g *Game) {
		status = g.Status
	}); err != nil {
		return err
	}
	if err := s.db.Where("game_id = ? AND count = ?", gameDBID, count).
		Delete(&db.Round{}).Error; err != nil {
		return err
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", gameDBID).
		Update("status", status).Error; err != nil {
		return err
	}
	return s.persistEvent(game.ID, eventRoundAbandoned, payload)
}

func (s *Server) persistPhoto(game *Game, playerID int, storageKey, caption string) error {
	if s.db == nil {
		return nil
	}
	if err := s.persistRound(game); err != nil {
		return err
	}
	var roundDBID, playerDBID uint
	var roundCount int
	if err := s.viewGame(game.ID, func(g *Game) {
		if round := currentRound(g); round != nil {
			roundDBID = round.DBID
			roundCount = round.Count
		}
		if player, ok := findPlayer(g, playerID); ok {
			playerDBID = player.DBID
		}
	}); err != nil {
		return err
	}
	if roundDBID == 0 {
		return errNoActiveRound
	}
	if playerDBID == 0 {
		return errPlayerNotFound
	}
	record := db.Photo{
		RoundID:    roundDBID,
		PlayerID:   playerDBID,
		StorageKey: storageKey,
		Caption:    caption,
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return errPhotoDuplicate
		}
		return err
	}
	_ = s.viewGame(game.ID, func(g *Game) {
		round := roundByCount(g, roundCount)
		if round == nil {
			return
		}
		for i := range round.Photos {
			if round.Photos[i].PlayerID == playerID {
				round.Photos[i].DBID = record.ID
				break
			}
		}
	})
	return s.persistEvent(game.ID, eventPhotoSubmitted, EventPayload{
		PlayerID: playerID,
		PhotoKey: storageKey,
	})
}

func (s *Server) persistTargetPhoto(game *Game, count, playerID int) error {
	if s.db == nil {
		return nil
	}
	var roundDBID, playerDBID uint
	if err := s.viewGame(game.ID, func(g *Game) {
		if round := roundByCount(g, count); round != nil {
			roundDBID = round.DBID
		}
		if player, ok := findPlayer(g, playerID); ok {
			playerDBID = player.DBID
		}
	}); err != nil {
		return err
	}
	if roundDBID == 0 {
		return errNoActiveRound
	}
	if playerDBID == 0 {
		return errPlayerNotFound
	}
	return s.db.Model(&db.Photo{}).
		Where("round_id = ? AND player_id = ?", roundDBID, playerDBID).
		Update("is_roast_target", true).Error
}

func (s *Server) persistIdeas(game *Game, count int) error {
	if s.db == nil {
		return nil
	}
	var roundDBID uint
	var ideas []IdeaEntry
	if err := s.viewGame(game.ID, func(g *Game) {
		if round := roundByCount(g, count); round != nil {
			roundDBID = round.DBID
			ideas = append([]IdeaEntry(nil), round.Ideas...)
		}
	}); err != nil {
		return err
	}
	if roundDBID == 0 {
		return errNoActiveRound
	}
	created := make(map[int]uint, len(ideas))
	for _, entry := range ideas {
		if entry.DBID != 0 {
			continue
		}
		record := db.Idea{
			RoundID: roundDBID,
			Text:    entry.Text,
		}
		if err := s.db.Create(&record).Error; err != nil {
			return err
		}
		created[entry.ID] = record.ID
	}
	_ = s.viewGame(game.ID, func(g *Game) {
		round := roundByCount(g, count)
		if round == nil {
			return
		}
		for i := range round.Ideas {
			if id, ok := created[round.Ideas[i].ID]; ok {
				round.Ideas[i].DBID = id
			}
		}
	})
	return s.persistEvent(game.ID, eventIdeasReady, EventPayload{
		RoundCount: count,
		Count:      len(ideas),
	})
}

func (s *Server) persistVoteToggle(game *Game, playerID, ideaID int, removed bool) error {
	if s.db == nil {
		return nil
	}
	var playerDBID, ideaDBID uint
	if err := s.viewGame(game.ID, func(g *Game) {
		if player, ok := findPlayer(g, playerID); ok {
			playerDBID = player.DBID
		}
		if round := currentRound(g); round != nil {
			if idea, ok := findIdea(round, ideaID); ok {
				ideaDBID = idea.DBID
			}
		}
	}); err != nil {
		return err
	}
	if playerDBID == 0 {
		return errPlayerNotFound
	}
	if ideaDBID == 0 {
		return errIdeaNotFound
	}
	if removed {
		if err := s.db.Where("idea_id = ? AND player_id = ?", ideaDBID, playerDBID).
			Delete(&db.Vote{}).Error; err != nil {
			return err
		}
	} else {
		record := db.Vote{IdeaID: ideaDBID, PlayerID: playerDBID}
		if err := s.db.Create(&record).Error; err != nil && !isUniqueViolation(err) {
			return err
		}
	}
	return s.persistEvent(game.ID, eventVoteToggled, EventPayload{
		PlayerID:    playerID,
		IdeaID:      ideaID,
		VoteRemoved: removed,
	})
}

func (s *Server) persistRoast(game *Game, count int) error {
	if s.db == nil {
		return nil
	}
	var roundDBID, photoDBID uint
	var poem string
	if err := s.viewGame(game.ID, func(g *Game) {
		round := roundByCount(g, count)
		if round == nil {
			return
		}
		roundDBID = round.DBID
		poem = round.Poem
		for _, photo := range round.Photos {
			if photo.IsRoastTarget {
				photoDBID = photo.DBID
				break
			}
		}
	}); err != nil {
		return err
	}
	if roundDBID == 0 {
		return errNoActiveRound
	}
	record := db.Roast{
		RoundID: roundDBID,
		PhotoID: photoDBID,
		Text:    poem,
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}
	_ = s.viewGame(game.ID, func(g *Game) {
		if round := roundByCount(g, count); round != nil {
			round.PoemDBID = record.ID
		}
	})
	return s.persistEvent(game.ID, eventRoastReady, EventPayload{RoundCount: count})
}

// persistHeartbeat is the cheap path: only the heartbeat timestamp moves.
func (s *Server) persistHeartbeat(game *Game, playerID int, at time.Time) error {
	if s.db == nil {
		return nil
	}
	var connDBID uint
	if err := s.viewGame(game.ID, func(g *Game) {
		if conn, ok := findConnection(g, playerID); ok {
			connDBID = conn.DBID
		}
	}); err != nil {
		return err
	}
	if connDBID == 0 {
		return nil
	}
	return s.db.Model(&db.Connection{}).Where("id = ?", connDBID).
		Update("last_heartbeat", at).Error
}

func (s *Server) persistConnectionFlip(game *Game, playerID int, active bool, eventKind string) error {
	if s.db == nil {
		return nil
	}
	var connDBID uint
	var lastHeartbeat, changedAt time.Time
	if err := s.viewGame(game.ID, func(g *Game) {
		if conn, ok := findConnection(g, playerID); ok {
			connDBID = conn.DBID
			lastHeartbeat = conn.LastHeartbeat
			changedAt = conn.ActivityChangedAt
		}
	}); err != nil {
		return err
	}
	if connDBID == 0 {
		return nil
	}
	updates := map[string]any{
		"is_active":           active,
		"last_heartbeat":      lastHeartbeat,
		"activity_changed_at": changedAt,
	}
	if err := s.db.Model(&db.Connection{}).Where("id = ?", connDBID).
		Updates(updates).Error; err != nil {
		return err
	}
	return s.persistEvent(game.ID, eventKind, EventPayload{PlayerID: playerID})
}

func (s *Server) persistEvent(gameID, eventKind string, payload EventPayload) error {
	if s.db == nil {
		return nil
	}
	gameDBID, err := s.gameDBID(gameID)
	if err != nil {
		return err
	}
	var roundDBID, playerDBID, connDBID *uint
	if err := s.viewGame(gameID, func(g *Game) {
		if round := currentRound(g); round != nil && round.DBID != 0 {
			id := round.DBID
			roundDBID = &id
		}
		if payload.PlayerID > 0 {
			if player, ok := findPlayer(g, payload.PlayerID); ok && player.DBID != 0 {
				id := player.DBID
				playerDBID = &id
			}
			if conn, ok := findConnection(g, payload.PlayerID); ok && conn.DBID != 0 {
				id := conn.DBID
				connDBID = &id
			}
		}
	}); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		GameID:       gameDBID,
		RoundID:      roundDBID,
		PlayerID:     playerDBID,
		ConnectionID: connDBID,
		Kind:         eventKind,
		Payload:      datatypes.JSON(data),
	}
	return s.db.Create(&event).Error
}

// gameDBID resolves the game's row id, backfilling from the join code when
// the process restarted with rows already in Postgres.
func (s *Server) gameDBID(gameID string) (uint, error) {
	var dbid uint
	var code string
	if err := s.viewGame(gameID, func(g *Game) {
		dbid = g.DBID
		code = g.JoinCode
	}); err != nil {
		return 0, err
	}
	if dbid != 0 {
		return dbid, nil
	}
	var record db.Game
	if err := s.db.Where("join_code = ?", code).First(&record).Error; err != nil {
		return 0, errGameNotFound
	}
	_ = s.viewGame(gameID, func(g *Game) {
		g.DBID = record.ID
	})
	return record.ID, nil
}

func (s *Server) findPlayerDBID(gameDBID uint, name string) (uint, error) {
	var record db.Player
	if err := s.db.Where("game_id = ? AND name = ?", gameDBID, name).First(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func roundByCount(game *Game, count int) *RoundState {
	for i := range game.Rounds {
		if game.Rounds[i].Count == count {
			return &game.Rounds[i]
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
