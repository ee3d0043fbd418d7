package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prescripto/booking/internal/domain"
)

// ErrStateChanged is returned by Transition and SetPaymentStatus when the
// appointment is missing or no longer in a state the write applies to.
// Callers re-read the appointment to report the precise outcome.
var ErrStateChanged = errors.New("appointment state changed")

type DoctorRepository interface {
	Create(ctx context.Context, doctor *domain.Doctor) error
	List(ctx context.Context) ([]domain.Doctor, error)
	GetByID(ctx context.Context, id string) (*domain.Doctor, error)
	SetAvailability(ctx context.Context, id string, available bool) error
	// UpdateProfile applies the non-nil fields of update and returns the doctor.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.Doctor, error)
	// ReleaseSlot removes time from the doctor's calendar if present and drops the
	// date when its list becomes empty. It reports whether anything was removed.
	ReleaseSlot(ctx context.Context, key domain.SlotKey) (bool, error)
}

// ProfileUpdate holds the doctor fields a profile edit may change. Nil fields
// are left as stored; the calendar is never part of a profile edit.
type ProfileUpdate struct {
	Fees      *int64
	Address   *domain.Address
	Available *bool
}

func (u ProfileUpdate) Empty() bool {
	return u.Fees == nil && u.Address == nil && u.Available == nil
}

type PatientRepository interface {
	Create(ctx context.Context, patient *domain.Patient) error
	GetByID(ctx context.Context, id string) (*domain.Patient, error)
	Count(ctx context.Context) (int64, error)
}

type AppointmentFilter struct {
	PatientID string
	DoctorID  string
}

// Transition describes a terminal lifecycle write.
type Transition struct {
	To domain.AppointmentStatus
	At time.Time
	// FillAmount, when positive, replaces the stored amount.
	FillAmount int64
}

type AppointmentRepository interface {
	// CreateBooked occupies the appointment's slot on the doctor calendar and
	// persists the appointment as one unit. The occupy is conditional: it fails
	// with domain.ErrSlotAlreadyBooked when the time is already held and with
	// domain.ErrDoctorUnavailable when the doctor is not accepting bookings.
	CreateBooked(ctx context.Context, appt *domain.Appointment) error
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	// Transition applies only while the appointment is pending.
	Transition(ctx context.Context, id string, t Transition) (*domain.Appointment, error)
	// SetPaymentStatus applies only while the appointment is not cancelled.
	SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Appointment, error)
	// HasActive reports whether a pending appointment holds the slot.
	HasActive(ctx context.Context, key domain.SlotKey) (bool, error)
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
}
