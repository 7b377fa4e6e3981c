// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormRound 估算轮次归档模型
type GormRound struct {
	gorm.Model
	RoomID           string `gorm:"index;not null"`
	StoryName        string `gorm:"not null"`
	StoryDescription string
	Votes            string `gorm:"type:jsonb;not null"` // player name -> card
	VoteCount        int    `gorm:"default:0"`
	Average          *float64
	Median           *float64
}
