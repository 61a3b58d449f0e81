package store

import (
	"errors"

	"studio-messaging/internal/models"

	"gorm.io/gorm"
)

// AppointmentStore gives the messaging core read access to appointment
// and client records for reminder interpolation. Booking CRUD lives in
// the wider backend, not here.
type AppointmentStore struct {
	db *gorm.DB
}

func NewAppointmentStore(db *gorm.DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

func (s *AppointmentStore) Find(id uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.First(&appt, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// FindWithClient loads an appointment together with its client, or
// (nil, nil, nil) when the appointment does not exist.
func (s *AppointmentStore) FindWithClient(id uint) (*models.Appointment, *models.Client, error) {
	appt, err := s.Find(id)
	if err != nil || appt == nil {
		return nil, nil, err
	}

	var client models.Client
	err = s.db.First(&client, appt.ClientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appt, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return appt, &client, nil
}
