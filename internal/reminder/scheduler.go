// Package reminder creates and dispatches appointment reminders. A
// periodic sweep picks up due jobs and sends the matching template
// through the gateway; a job that cannot be sent stays scheduled and
// is retried on the next sweep.
package reminder

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"studio-messaging/internal/models"
	"studio-messaging/internal/store"
	"studio-messaging/internal/wa"

	"go.uber.org/zap"
)

// Reminder template names as seeded by the database package.
const (
	templateConfirmation = "lembrete_confirmacao"
	template24h          = "lembrete_24h"
	template2h           = "lembrete_2h"
)

// Sender is the outbound path the scheduler dispatches through; the
// gateway implements it.
type Sender interface {
	SendTemplate(ctx context.Context, to, templateName string, vars map[string]string, sctx wa.SendContext) (*models.Message, error)
}

type Options struct {
	Interval      time.Duration
	RetryLimit    int
	CountryPrefix string
	StudioAddress string
}

type Scheduler struct {
	jobs   *store.ReminderStore
	appts  *store.AppointmentStore
	sender Sender
	log    *zap.Logger
	opts   Options

	now func() time.Time
}

func NewScheduler(jobs *store.ReminderStore, appts *store.AppointmentStore, sender Sender, log *zap.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = 10
	}
	if opts.CountryPrefix == "" {
		opts.CountryPrefix = "55"
	}
	return &Scheduler{
		jobs:   jobs,
		appts:  appts,
		sender: sender,
		log:    log,
		opts:   opts,
		now:    time.Now,
	}
}

// CreateForAppointment creates up to three reminder jobs for a booked
// or confirmed appointment: a confirmation firing immediately and two
// timed reminders. Timed reminders whose fire time has already passed
// are not created. Creation is idempotent per (appointment, kind).
func (s *Scheduler) CreateForAppointment(appointmentID uint) ([]models.ReminderJob, error) {
	appt, err := s.appts.Find(appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, fmt.Errorf("appointment %d not found", appointmentID)
	}
	if appt.Status == models.AppointmentCancelled {
		return nil, fmt.Errorf("appointment %d is cancelled", appointmentID)
	}

	now := s.now()
	candidates := []models.ReminderJob{
		{AppointmentID: appointmentID, Kind: models.ReminderConfirmation, FireAt: now},
		{AppointmentID: appointmentID, Kind: models.Reminder24h, FireAt: appt.StartsAt.Add(-24 * time.Hour)},
		{AppointmentID: appointmentID, Kind: models.Reminder2h, FireAt: appt.StartsAt.Add(-2 * time.Hour)},
	}

	var created []models.ReminderJob
	for _, job := range candidates {
		if job.Kind != models.ReminderConfirmation && job.FireAt.Before(now) {
			continue
		}
		exists, err := s.jobs.HasJob(appointmentID, job.Kind)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		job.Status = models.JobScheduled
		if err := s.jobs.Create(&job); err != nil {
			return created, err
		}
		created = append(created, job)
	}
	return created, nil
}

// CancelForAppointment cancels the appointment's still-scheduled jobs.
// Called when the underlying appointment is cancelled.
func (s *Scheduler) CancelForAppointment(appointmentID uint) (int64, error) {
	return s.jobs.CancelForAppointment(appointmentID)
}

// Run executes the sweep on the configured interval until the context
// is cancelled. Sweeps run on this goroutine one after another, so a
// long sweep delays the next one instead of overlapping it.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.log.Info("reminder scheduler started", zap.Duration("interval", s.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep sends every due job. Failed dispatches leave the job scheduled
// for the next sweep; a job past the retry budget is surfaced as an
// alert and keeps retrying rather than being dropped.
func (s *Scheduler) Sweep(ctx context.Context) (sent int) {
	due, err := s.jobs.Due(s.now())
	if err != nil {
		s.log.Error("failed to load due reminder jobs", zap.Error(err))
		return 0
	}

	for _, job := range due {
		if err := s.dispatch(ctx, job); err != nil {
			if recErr := s.jobs.RecordFailure(job.ID, err.Error()); recErr != nil {
				s.log.Error("failed to record reminder failure",
					zap.Uint("job_id", job.ID), zap.Error(recErr))
			}
			if job.Attempts+1 >= s.opts.RetryLimit {
				s.log.Error("reminder job exceeded retry budget",
					zap.Uint("job_id", job.ID),
					zap.Uint("appointment_id", job.AppointmentID),
					zap.String("kind", job.Kind),
					zap.Int("attempts", job.Attempts+1),
					zap.Error(err))
			} else {
				s.log.Warn("reminder dispatch failed, will retry",
					zap.Uint("job_id", job.ID), zap.Error(err))
			}
			continue
		}
		if err := s.jobs.MarkSent(job.ID, s.now()); err != nil {
			s.log.Error("failed to mark reminder sent",
				zap.Uint("job_id", job.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

func (s *Scheduler) dispatch(ctx context.Context, job models.ReminderJob) error {
	appt, client, err := s.appts.FindWithClient(job.AppointmentID)
	if err != nil {
		return err
	}
	if appt == nil || client == nil {
		return fmt.Errorf("appointment %d or its client no longer exists", job.AppointmentID)
	}
	if appt.Status == models.AppointmentCancelled {
		// Safety net: the cancellation trigger normally cancels jobs
		// before they fire.
		if _, err := s.jobs.CancelForAppointment(job.AppointmentID); err != nil {
			return err
		}
		return fmt.Errorf("appointment %d is cancelled", job.AppointmentID)
	}

	templateName, vars := s.payload(job.Kind, appt, client)
	if templateName == "" {
		return fmt.Errorf("unknown reminder kind %q", job.Kind)
	}

	clientID := client.ID
	apptID := appt.ID
	_, err = s.sender.SendTemplate(ctx, s.recipient(client.Phone), templateName, vars, wa.SendContext{
		ClientID:      &clientID,
		AppointmentID: &apptID,
		Automated:     true,
	})
	return err
}

// payload picks the template and variables for a reminder kind.
func (s *Scheduler) payload(kind string, appt *models.Appointment, client *models.Client) (string, map[string]string) {
	data := appt.StartsAt.Format("02/01/2006")
	horario := appt.StartsAt.Format("15:04")

	switch kind {
	case models.ReminderConfirmation:
		return templateConfirmation, map[string]string{
			"nome":    client.Name,
			"data":    data,
			"horario": horario,
			"tipo":    appt.SessionType,
			"valor":   fmt.Sprintf("%.2f", appt.Price),
		}
	case models.Reminder24h:
		endereco := appt.Location
		if endereco == "" {
			endereco = s.opts.StudioAddress
		}
		return template24h, map[string]string{
			"nome":     client.Name,
			"data":     data,
			"horario":  horario,
			"endereco": endereco,
		}
	case models.Reminder2h:
		return template2h, map[string]string{
			"nome":    client.Name,
			"horario": horario,
		}
	}
	return "", nil
}

var nonDigits = regexp.MustCompile(`\D`)

// recipient normalizes a stored phone number into the transport
// address: digits only, country prefix prepended when missing.
func (s *Scheduler) recipient(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if len(digits) <= 11 {
		digits = s.opts.CountryPrefix + digits
	}
	return digits
}
