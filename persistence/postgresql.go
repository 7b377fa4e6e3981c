// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/Rabder/Planning-Poker/models"
)

// PostgreSQL is the plain database/sql implementation of Database, for
// deployments that do not want the ORM in the write path.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS rounds (
		id                SERIAL PRIMARY KEY,
		room_id           TEXT NOT NULL,
		story_name        TEXT NOT NULL,
		story_description TEXT NOT NULL DEFAULT '',
		votes             JSONB NOT NULL,
		vote_count        INT NOT NULL DEFAULT 0,
		average           DOUBLE PRECISION,
		median            DOUBLE PRECISION,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_room_id ON rounds (room_id);`

	_, err := db.Exec(schema)
	return err
}

func (p *PostgreSQL) SaveRound(record *models.RoundRecord) error {
	votes, err := json.Marshal(record.Votes)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
		INSERT INTO rounds (room_id, story_name, story_description, votes, vote_count, average, median)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.RoomID, record.StoryName, record.StoryDescription,
		votes, record.VoteCount, record.Average, record.Median,
	)
	return err
}

func (p *PostgreSQL) LoadRoomHistory(roomID string, limit int) ([]models.RoundRecord, error) {
	rows, err := p.db.Query(`
		SELECT room_id, story_name, story_description, votes, vote_count, average, median, created_at
		FROM rounds WHERE room_id = $1
		ORDER BY created_at DESC LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RoundRecord
	for rows.Next() {
		var record models.RoundRecord
		var votes []byte
		if err := rows.Scan(
			&record.RoomID, &record.StoryName, &record.StoryDescription,
			&votes, &record.VoteCount, &record.Average, &record.Median,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		record.Votes = make(map[string]string)
		if err := json.Unmarshal(votes, &record.Votes); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
