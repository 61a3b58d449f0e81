package store

import (
	"time"

	"studio-messaging/internal/models"

	"gorm.io/gorm"
)

// ReminderStore persists reminder jobs.
type ReminderStore struct {
	db *gorm.DB
}

func NewReminderStore(db *gorm.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func (s *ReminderStore) Create(job *models.ReminderJob) error {
	return s.db.Create(job).Error
}

// HasJob reports whether a job of the given kind already exists for
// the appointment, regardless of status. Creation is idempotent per
// (appointment, kind).
func (s *ReminderStore) HasJob(appointmentID uint, kind string) (bool, error) {
	var count int64
	err := s.db.Model(&models.ReminderJob{}).
		Where("appointment_id = ? AND kind = ?", appointmentID, kind).
		Count(&count).Error
	return count > 0, err
}

// Due returns scheduled jobs whose fire time has elapsed, oldest first.
func (s *ReminderStore) Due(now time.Time) ([]models.ReminderJob, error) {
	var jobs []models.ReminderJob
	err := s.db.Where("status = ? AND fire_at <= ?", models.JobScheduled, now).
		Order("fire_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (s *ReminderStore) MarkSent(id uint, at time.Time) error {
	return s.db.Model(&models.ReminderJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  models.JobSent,
			"sent_at": at,
		}).Error
}

// RecordFailure bumps the attempt counter and stores the last error so
// the next sweep retries the job.
func (s *ReminderStore) RecordFailure(id uint, reason string) error {
	return s.db.Model(&models.ReminderJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}

// CancelForAppointment cancels every still-scheduled job of an
// appointment. Sent jobs are left untouched.
func (s *ReminderStore) CancelForAppointment(appointmentID uint) (int64, error) {
	res := s.db.Model(&models.ReminderJob{}).
		Where("appointment_id = ? AND status = ?", appointmentID, models.JobScheduled).
		Update("status", models.JobCancelled)
	return res.RowsAffected, res.Error
}

func (s *ReminderStore) ListForAppointment(appointmentID uint) ([]models.ReminderJob, error) {
	var jobs []models.ReminderJob
	err := s.db.Where("appointment_id = ?", appointmentID).
		Order("fire_at ASC").
		Find(&jobs).Error
	return jobs, err
}
