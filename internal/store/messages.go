package store

import (
	"errors"

	"studio-messaging/internal/models"

	"gorm.io/gorm"
)

// MessageStore persists chat messages.
type MessageStore struct {
	db *gorm.DB
}

func NewMessageStore(db *gorm.DB) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) Create(msg *models.Message) error {
	return s.db.Create(msg).Error
}

func (s *MessageStore) Save(msg *models.Message) error {
	return s.db.Save(msg).Error
}

// FindByExternalID returns the message carrying the transport-assigned
// id, or (nil, nil) when no such message exists.
func (s *MessageStore) FindByExternalID(externalID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.Where("external_id = ?", externalID).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) FindByID(id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// MessageFilter narrows List results. Zero values mean "any".
type MessageFilter struct {
	Direction string
	Status    string
	Address   string // matches either side of the conversation
	Automated *bool
}

// List returns a page of messages, newest first, with the total count
// for the filter.
func (s *MessageStore) List(filter MessageFilter, page, pageSize int) ([]models.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	q := s.db.Model(&models.Message{})
	if filter.Direction != "" {
		q = q.Where("direction = ?", filter.Direction)
	}
	if filter.Status != "" {
		q = q.Where("delivery_status = ?", filter.Status)
	}
	if filter.Address != "" {
		q = q.Where("from_address = ? OR to_address = ?", filter.Address, filter.Address)
	}
	if filter.Automated != nil {
		q = q.Where("is_automated = ?", *filter.Automated)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	err := q.Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&messages).Error
	return messages, total, err
}

// Stats summarizes traffic for the connection status endpoint.
type MessageStats struct {
	Sent      int64 `json:"messages_sent"`
	Received  int64 `json:"messages_received"`
	Automated int64 `json:"messages_automated"`
}

func (s *MessageStore) Stats() (MessageStats, error) {
	var stats MessageStats
	if err := s.db.Model(&models.Message{}).
		Where("direction = ?", models.DirectionOutbound).
		Count(&stats.Sent).Error; err != nil {
		return stats, err
	}
	if err := s.db.Model(&models.Message{}).
		Where("direction = ?", models.DirectionInbound).
		Count(&stats.Received).Error; err != nil {
		return stats, err
	}
	if err := s.db.Model(&models.Message{}).
		Where("is_automated = ?", true).
		Count(&stats.Automated).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
