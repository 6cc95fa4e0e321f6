package db

import "time"

type Photo struct {
	ID            uint      `gorm:"primaryKey"`
	RoundID       uint      `gorm:"index;not null;uniqueIndex:idx_photos_round_player"`
	PlayerID      uint      `gorm:"index;not null;uniqueIndex:idx_photos_round_player"`
	StorageKey    string    `gorm:"size:255;not null"`
	Caption       string    `gorm:"size:100;not null;default:''"`
	IsRoastTarget bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
