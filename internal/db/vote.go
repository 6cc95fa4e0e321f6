package db

import "time"

type Vote struct {
	ID        uint      `gorm:"primaryKey"`
	IdeaID    uint      `gorm:"index;not null;uniqueIndex:idx_votes_idea_player"`
	PlayerID  uint      `gorm:"index;not null;uniqueIndex:idx_votes_idea_player"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
