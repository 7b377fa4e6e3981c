// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Rabder/Planning-Poker/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gl := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gl,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRound{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (g *GormPostgreSQL) SaveRound(record *models.RoundRecord) error {
	votes, err := json.Marshal(record.Votes)
	if err != nil {
		return err
	}

	row := models.GormRound{
		RoomID:           record.RoomID,
		StoryName:        record.StoryName,
		StoryDescription: record.StoryDescription,
		Votes:            string(votes),
		VoteCount:        record.VoteCount,
		Average:          record.Average,
		Median:           record.Median,
	}
	return g.db.Create(&row).Error
}

func (g *GormPostgreSQL) LoadRoomHistory(roomID string, limit int) ([]models.RoundRecord, error) {
	var rows []models.GormRound
	err := g.db.Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	records := make([]models.RoundRecord, 0, len(rows))
	for _, row := range rows {
		votes := make(map[string]string)
		if err := json.Unmarshal([]byte(row.Votes), &votes); err != nil {
			return nil, err
		}
		records = append(records, models.RoundRecord{
			RoomID:           row.RoomID,
			StoryName:        row.StoryName,
			StoryDescription: row.StoryDescription,
			Votes:            votes,
			VoteCount:        row.VoteCount,
			Average:          row.Average,
			Median:           row.Median,
			CreatedAt:        row.CreatedAt,
		})
	}
	return records, nil
}

func (g *GormPostgreSQL) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
