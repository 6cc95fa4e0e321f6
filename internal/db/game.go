package db

import "time"

type Game struct {
	ID        uint      `gorm:"primaryKey"`
	JoinCode  string    `gorm:"size:4;uniqueIndex;not null"`
	Status    string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Players     []Player     `gorm:"constraint:OnDelete:CASCADE"`
	Rounds      []Round      `gorm:"constraint:OnDelete:CASCADE"`
	Connections []Connection `gorm:"constraint:OnDelete:CASCADE"`
	Events      []Event      `gorm:"constraint:OnDelete:CASCADE"`
}
