// services/history_service.go
package services

import (
	"sort"
	"strconv"
	"time"

	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/models"
	"github.com/Rabder/Planning-Poker/persistence"
	"github.com/Rabder/Planning-Poker/room"
)

// HistoryService archives completed estimation rounds. Implements
// room.HistoryRecorder.
type HistoryService struct {
	db persistence.Database
}

func NewHistoryService(db persistence.Database) *HistoryService {
	return &HistoryService{db: db}
}

// RecordRound stores the story and cast votes, with the average and median
// of the numeric votes. Runs off the room's critical section; a failed write
// is logged and dropped, it never feeds back into room state.
func (s *HistoryService) RecordRound(roomID string, story room.Story, votes map[string]string) {
	average, median, count := VoteSummary(votes)

	record := &models.RoundRecord{
		RoomID:           roomID,
		StoryName:        story.Name,
		StoryDescription: story.Description,
		Votes:            votes,
		VoteCount:        count,
		Average:          average,
		Median:           median,
		CreatedAt:        time.Now(),
	}

	if err := s.db.SaveRound(record); err != nil {
		logger.Log.Errorf("Failed to archive round for room %s: %v", roomID, err)
		return
	}
	logger.Log.Infof("Archived round %q for room %s (%d votes)", story.Name, roomID, count)
}

// RoomHistory returns the most recent archived rounds of a room.
func (s *HistoryService) RoomHistory(roomID string, limit int) ([]models.RoundRecord, error) {
	return s.db.LoadRoomHistory(roomID, limit)
}

// VoteSummary computes the average and median over the numeric votes.
// Symbolic cards ("?", "coffee") do not participate; with no numeric votes
// both results are nil. The returned count is the number of numeric votes.
func VoteSummary(votes map[string]string) (average, median *float64, count int) {
	values := make([]float64, 0, len(votes))
	for _, card := range votes {
		v, err := strconv.ParseFloat(card, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, nil, 0
	}

	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))

	var med float64
	mid := len(values) / 2
	if len(values)%2 == 0 {
		med = (values[mid-1] + values[mid]) / 2
	} else {
		med = values[mid]
	}

	return &avg, &med, len(values)
}
