package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/prescripto/booking/internal/domain"
)

const (
	EventAppointmentBooked    = "appointment_booked"
	EventAppointmentCancelled = "appointment_cancelled"
	EventAppointmentCompleted = "appointment_completed"
	EventAppointmentPaid      = "appointment_paid"
)

type AppointmentEvent struct {
	Type          string    `json:"type"`
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	PatientID     string    `json:"patient_id"`
	SlotDate      string    `json:"slot_date"`
	SlotTime      string    `json:"slot_time"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	DoctorName    string    `json:"doctor_name"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewAppointmentEvent(eventType string, appt *domain.Appointment, at time.Time) AppointmentEvent {
	return AppointmentEvent{
		Type:          eventType,
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		SlotDate:      appt.SlotDate,
		SlotTime:      appt.SlotTime,
		Amount:        appt.Amount,
		Status:        string(appt.Status),
		PaymentStatus: string(appt.PaymentStatus),
		PatientName:   appt.Patient.Name,
		PatientEmail:  appt.Patient.Email,
		DoctorName:    appt.Doctor.Name,
		OccurredAt:    at,
	}
}

func DecodeAppointmentEvent(data []byte) (AppointmentEvent, error) {
	var event AppointmentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return AppointmentEvent{}, fmt.Errorf("decode appointment event: %w", err)
	}
	if event.Type == "" || event.AppointmentID == "" {
		return AppointmentEvent{}, fmt.Errorf("decode appointment event: missing type or appointment id")
	}
	return event, nil
}
