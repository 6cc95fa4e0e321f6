package db

import "time"

type Round struct {
	ID             uint      `gorm:"primaryKey"`
	GameID         uint      `gorm:"index;not null;uniqueIndex:idx_rounds_game_count"`
	Count          int       `gorm:"not null;uniqueIndex:idx_rounds_game_count"`
	Phase          string    `gorm:"size:32;not null"`
	PhaseChangedAt time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`

	Photos []Photo `gorm:"constraint:OnDelete:CASCADE"`
	Ideas  []Idea  `gorm:"constraint:OnDelete:CASCADE"`
}
