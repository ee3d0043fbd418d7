package domain

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCancelled || s == AppointmentStatusCompleted
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCompleted PaymentStatus = "completed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusCompleted:
		return true
	}
	return false
}

type Appointment struct {
	ID            string
	PatientID     string
	DoctorID      string
	SlotDate      string
	SlotTime      string
	Amount        int64
	Status        AppointmentStatus
	PaymentStatus PaymentStatus
	Patient       PatientSnapshot
	Doctor        DoctorSnapshot
	CancelledAt   *time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a *Appointment) SlotKey() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.SlotDate, Time: a.SlotTime}
}

func (a *Appointment) Cancelled() bool { return a.Status == AppointmentStatusCancelled }

func (a *Appointment) Completed() bool { return a.Status == AppointmentStatusCompleted }

// Availability is the advisory answer of the availability checker.
type Availability string

const (
	AvailabilityAvailable         Availability = "AVAILABLE"
	AvailabilityUnavailableDoctor Availability = "UNAVAILABLE_DOCTOR"
	AvailabilitySlotTaken         Availability = "SLOT_TAKEN"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID   string
	Role Role
}

// CanManage reports whether the actor may cancel the appointment.
func (a Actor) CanManage(appt *Appointment) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleDoctor:
		return appt.DoctorID == a.ID
	case RolePatient:
		return appt.PatientID == a.ID
	}
	return false
}

// CanComplete reports whether the actor may mark the appointment completed.
func (a Actor) CanComplete(appt *Appointment) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleDoctor:
		return appt.DoctorID == a.ID
	}
	return false
}

// CanPay reports whether the actor may pay for the appointment.
func (a Actor) CanPay(appt *Appointment) bool {
	return a.Role == RoleAdmin || (a.Role == RolePatient && appt.PatientID == a.ID)
}
