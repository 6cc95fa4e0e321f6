package db

import "time"

// Roast is the poem composed from the round's top-voted ideas.
type Roast struct {
	ID        uint      `gorm:"primaryKey"`
	RoundID   uint      `gorm:"uniqueIndex;not null"`
	PhotoID   uint      `gorm:"index;not null"`
	Text      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
