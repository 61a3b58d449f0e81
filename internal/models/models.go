package models

import (
	"time"
)

// Message direction
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message delivery status. Transitions only move forward:
// pending -> sent -> delivered -> read, or to failed from any
// non-terminal state.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Media types recognized by the transport
const (
	MediaText     = "text"
	MediaImage    = "image"
	MediaDocument = "document"
	MediaAudio    = "audio"
	MediaVideo    = "video"
	MediaLocation = "location"
)

// Message represents a single inbound or outbound WhatsApp message.
// ExternalID is assigned by the transport and is unique once set; an
// outbound message created before the transport confirms the send has
// no ExternalID yet.
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ExternalID     *string    `gorm:"type:varchar(255);uniqueIndex" json:"external_id"`
	FromAddress    string     `gorm:"type:varchar(100);index" json:"from"`
	ToAddress      string     `gorm:"type:varchar(100);index" json:"to"`
	Body           string     `gorm:"type:text" json:"body"`
	MediaType      string     `gorm:"type:varchar(20);default:'text'" json:"media_type"`
	Direction      string     `gorm:"type:varchar(10);not null;index" json:"direction"`
	DeliveryStatus string     `gorm:"type:varchar(20);default:'pending';index" json:"delivery_status"`
	TemplateName   *string    `gorm:"type:varchar(255)" json:"template_name"`
	ClientID       *uint      `gorm:"index" json:"client_id"`
	AppointmentID  *uint      `gorm:"index" json:"appointment_id"`
	Metadata       string     `gorm:"type:text" json:"metadata"`
	IsAutomated    bool       `gorm:"default:false" json:"is_automated"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
	SentAt         *time.Time `json:"sent_at"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Message) TableName() string {
	return "whatsapp_messages"
}

// Template categories
const (
	CategoryMarketing      = "marketing"
	CategoryUtility        = "utility"
	CategoryAuthentication = "authentication"
)

// Template represents a reusable message body with {{variable}}
// placeholders. UsageCount increments exactly once per successful send
// that used the template.
type Template struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	DisplayName string     `gorm:"type:varchar(255)" json:"display_name"`
	Category    string     `gorm:"type:varchar(50);not null;index" json:"category"`
	Language    string     `gorm:"type:varchar(10);default:'pt_BR'" json:"language"`
	BodyText    string     `gorm:"type:text;not null" json:"body_text"`
	Variables   string     `gorm:"type:text" json:"variables"` // JSON array of declared names
	// No default tag: gorm would omit an explicit false on Create and
	// store the column default instead. Callers always set the value.
	IsActive    bool       `gorm:"index" json:"is_active"`
	UsageCount  int        `gorm:"default:0" json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "whatsapp_templates"
}

// Reminder kinds
const (
	ReminderConfirmation = "confirmation"
	Reminder24h          = "reminder_24h"
	Reminder2h           = "reminder_2h"
)

// ReminderJob status
const (
	JobScheduled = "scheduled"
	JobSent      = "sent"
	JobCancelled = "cancelled"
)

// ReminderJob is a scheduled, not-yet-sent reminder derived from an
// appointment. A job stays scheduled until the sweep manages to send
// it or the appointment is cancelled.
type ReminderJob struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AppointmentID uint       `gorm:"not null;index" json:"appointment_id"`
	Kind          string     `gorm:"type:varchar(20);not null" json:"kind"`
	FireAt        time.Time  `gorm:"not null;index" json:"fire_at"`
	Status        string     `gorm:"type:varchar(20);default:'scheduled';index" json:"status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReminderJob) TableName() string {
	return "reminder_jobs"
}

// Client is a studio customer. The messaging core reads it for
// reminder variable interpolation only.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Client) TableName() string {
	return "clients"
}

// Appointment status
const (
	AppointmentBooked    = "booked"
	AppointmentConfirmed = "confirmed"
	AppointmentDone      = "done"
	AppointmentCancelled = "cancelled"
)

// Appointment is a booked photo session.
type Appointment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClientID    uint      `gorm:"not null;index" json:"client_id"`
	StartsAt    time.Time `gorm:"not null;index" json:"starts_at"`
	SessionType string    `gorm:"type:varchar(50)" json:"session_type"`
	Price       float64   `gorm:"type:decimal(10,2)" json:"price"`
	Location    string    `gorm:"type:varchar(255)" json:"location"`
	Status      string    `gorm:"type:varchar(20);default:'booked';index" json:"status"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}
