package db

import "time"

type Connection struct {
	ID                uint      `gorm:"primaryKey"`
	GameID            uint      `gorm:"index;not null;uniqueIndex:idx_connections_game_player"`
	PlayerID          uint      `gorm:"index;not null;uniqueIndex:idx_connections_game_player"`
	IsActive          bool      `gorm:"not null;default:true"`
	LastHeartbeat     time.Time `gorm:"not null"`
	ActivityChangedAt time.Time `gorm:"not null"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}
