// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/Rabder/Planning-Poker/models"
)

// Database 估算历史归档接口
type Database interface {
	SaveRound(record *models.RoundRecord) error
	LoadRoomHistory(roomID string, limit int) ([]models.RoundRecord, error)
	Close() error
}

var (
	ErrRecordNotFound = errors.New("record not found")
)
