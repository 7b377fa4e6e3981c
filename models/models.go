// models/models.go
package models

import (
	"time"
)

// RoundRecord 一轮估算的归档记录
type RoundRecord struct {
	RoomID           string            `json:"room_id"`
	StoryName        string            `json:"story_name"`
	StoryDescription string            `json:"story_description"`
	Votes            map[string]string `json:"votes"` // player name -> card
	VoteCount        int               `json:"vote_count"`
	Average          *float64          `json:"average,omitempty"` // numeric votes only
	Median           *float64          `json:"median,omitempty"`  // numeric votes only
	CreatedAt        time.Time         `json:"created_at"`
}
