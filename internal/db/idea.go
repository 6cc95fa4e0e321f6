package db

import "time"

type Idea struct {
	ID        uint      `gorm:"primaryKey"`
	RoundID   uint      `gorm:"index;not null"`
	Text      string    `gorm:"size:280;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Votes []Vote `gorm:"constraint:OnDelete:CASCADE"`
}
