package tinychat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = &GormStore{}

// chatRecord is one persisted session: the full message sequence as a JSON
// column, replaced wholesale on each save.
type chatRecord struct {
	SessionID string `gorm:"primaryKey;column:session_id"`
	Messages  []byte `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (chatRecord) TableName() string {
	return "chats"
}

// GormStore implements Store on Postgres. Same contract as FileStore; the
// row upsert gives the same last-writer-wins behavior.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore connects to the given Postgres DSN and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", errors.Join(ErrStorage, err))
	}
	if err := db.AutoMigrate(&chatRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", errors.Join(ErrStorage, err))
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context) (string, error) {
	id := NewSessionID()
	if err := s.Save(ctx, id, []Message{}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *GormStore) Load(ctx context.Context, id string) ([]Message, error) {
	var record chatRecord
	err := s.db.WithContext(ctx).First(&record, "session_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat: %w", errors.Join(ErrStorage, err))
	}
	var messages []Message
	if err := json.Unmarshal(record.Messages, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode chat row: %w", errors.Join(ErrStorage, err))
	}
	return messages, nil
}

func (s *GormStore) Save(ctx context.Context, id string, messages []Message) error {
	content, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}
	record := chatRecord{SessionID: id, Messages: content}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"messages", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", errors.Join(ErrStorage, err))
	}
	return nil
}

func (s *GormStore) ListSessions(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&chatRecord{}).Pluck("session_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", errors.Join(ErrStorage, err))
	}
	return ids, nil
}
