package callrecord

import (
	"context"
	"errors"
	"time"

	"github.com/eleven-am/voice-bridge/internal/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists call records. A Store without a database accepts every
// call and does nothing.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

func (s *Store) Migrate() error {
	if !s.Enabled() {
		return nil
	}
	return s.db.AutoMigrate(&Record{})
}

func (s *Store) Start(ctx context.Context, r *Record) error {
	if !s.Enabled() {
		return nil
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(r).Error
}

// End closes the most recent open record of a conversation.
func (s *Store) End(ctx context.Context, conversationID, reasonCode, reason string) error {
	if !s.Enabled() {
		return nil
	}

	var r Record
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND ended_at IS NULL", conversationID).
		Order("started_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&r).Updates(map[string]any{
		"ended_at":    now,
		"reason_code": reasonCode,
		"reason":      reason,
	}).Error
}

func (s *Store) GetByConversation(ctx context.Context, conversationID string) ([]*Record, error) {
	if !s.Enabled() {
		return nil, nil
	}
	var records []*Record
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("started_at ASC").
		Find(&records).Error
	return records, err
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var records []*Record
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&records).Error
	return records, err
}
