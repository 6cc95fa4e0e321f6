package db

import "time"

type Player struct {
	ID           uint      `gorm:"primaryKey"`
	GameID       uint      `gorm:"index;not null;uniqueIndex:idx_players_game_name"`
	Name         string    `gorm:"size:32;not null;uniqueIndex:idx_players_game_name"`
	Avatar       int       `gorm:"not null;default:1"`
	SessionToken string    `gorm:"size:64;index;not null"`
	IsHost       bool      `gorm:"not null;default:false"`
	JoinedAt     time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`

	Photos []Photo `gorm:"constraint:OnDelete:CASCADE"`
	Votes  []Vote  `gorm:"constraint:OnDelete:CASCADE"`
}
