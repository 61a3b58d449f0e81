package store

import (
	"errors"
	"time"

	"studio-messaging/internal/models"

	"gorm.io/gorm"
)

// TemplateStore persists message templates.
type TemplateStore struct {
	db *gorm.DB
}

func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

// FindActiveByName returns the active template with the given name, or
// (nil, nil) when absent or inactive.
func (s *TemplateStore) FindActiveByName(name string) (*models.Template, error) {
	var tpl models.Template
	err := s.db.Where("name = ? AND is_active = ?", name, true).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *TemplateStore) FindByName(name string) (*models.Template, error) {
	var tpl models.Template
	err := s.db.Where("name = ?", name).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// RecordUsage bumps the usage counter and last-used timestamp in one
// statement so concurrent senders never lose an increment.
func (s *TemplateStore) RecordUsage(name string) error {
	now := time.Now()
	return s.db.Model(&models.Template{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": now,
		}).Error
}

func (s *TemplateStore) List(category string, activeOnly bool) ([]models.Template, error) {
	q := s.db.Model(&models.Template{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var templates []models.Template
	err := q.Order("category ASC, name ASC").Find(&templates).Error
	return templates, err
}

func (s *TemplateStore) Create(tpl *models.Template) error {
	return s.db.Create(tpl).Error
}

func (s *TemplateStore) Update(tpl *models.Template) error {
	return s.db.Save(tpl).Error
}

func (s *TemplateStore) DeleteByName(name string) error {
	return s.db.Where("name = ?", name).Delete(&models.Template{}).Error
}
