package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prescripto/booking/internal/domain"
)

// MemoryStore keeps doctors, patients and appointments in process. All three
// repositories share one mutex, so CreateBooked is a single critical section.
type MemoryStore struct {
	mu           sync.Mutex
	doctors      map[string]*domain.Doctor
	patients     map[string]*domain.Patient
	appointments map[string]*domain.Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors:      make(map[string]*domain.Doctor),
		patients:     make(map[string]*domain.Patient),
		appointments: make(map[string]*domain.Appointment),
	}
}

func (s *MemoryStore) Doctors() DoctorRepository { return (*memoryDoctors)(s) }

func (s *MemoryStore) Patients() PatientRepository { return (*memoryPatients)(s) }

func (s *MemoryStore) Appointments() AppointmentRepository { return (*memoryAppointments)(s) }

type memoryDoctors MemoryStore

func (r *memoryDoctors) Create(_ context.Context, doctor *domain.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	if _, ok := r.doctors[doctor.ID]; ok {
		return fmt.Errorf("doctor %s already exists", doctor.ID)
	}
	if doctor.CreatedAt.IsZero() {
		doctor.CreatedAt = time.Now()
	}
	if doctor.SlotsBooked == nil {
		doctor.SlotsBooked = domain.SlotCalendar{}
	}
	r.doctors[doctor.ID] = copyDoctor(doctor)
	return nil
}

func (r *memoryDoctors) List(_ context.Context) ([]domain.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		out = append(out, *copyDoctor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryDoctors) GetByID(_ context.Context, id string) (*domain.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, domain.ErrDoctorNotFound
	}
	return copyDoctor(d), nil
}

func (r *memoryDoctors) SetAvailability(_ context.Context, id string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return domain.ErrDoctorNotFound
	}
	d.Available = available
	return nil
}

func (r *memoryDoctors) UpdateProfile(_ context.Context, id string, update ProfileUpdate) (*domain.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, domain.ErrDoctorNotFound
	}
	if update.Fees != nil {
		d.Fees = *update.Fees
	}
	if update.Address != nil {
		d.Address = *update.Address
	}
	if update.Available != nil {
		d.Available = *update.Available
	}
	return copyDoctor(d), nil
}

func (r *memoryDoctors) ReleaseSlot(_ context.Context, key domain.SlotKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[key.DoctorID]
	if !ok {
		return false, domain.ErrDoctorNotFound
	}
	return d.SlotsBooked.Release(key.Date, key.Time), nil
}

type memoryPatients MemoryStore

func (r *memoryPatients) Create(_ context.Context, patient *domain.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	p := *patient
	r.patients[p.ID] = &p
	return nil
}

func (r *memoryPatients) GetByID(_ context.Context, id string) (*domain.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, domain.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPatients) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.patients)), nil
}

type memoryAppointments MemoryStore

func (r *memoryAppointments) CreateBooked(_ context.Context, appt *domain.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[appt.DoctorID]
	if !ok {
		return domain.ErrDoctorNotFound
	}
	if !d.Available {
		return domain.ErrDoctorUnavailable
	}
	if !d.SlotsBooked.Occupy(appt.SlotDate, appt.SlotTime) {
		return domain.ErrSlotAlreadyBooked
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	cp := *appt
	r.appointments[cp.ID] = &cp
	return nil
}

func (r *memoryAppointments) GetByID(_ context.Context, id string) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, domain.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memoryAppointments) Transition(_ context.Context, id string, t Transition) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != domain.AppointmentStatusPending {
		return nil, ErrStateChanged
	}
	at := t.At
	switch t.To {
	case domain.AppointmentStatusCancelled:
		a.CancelledAt = &at
	case domain.AppointmentStatusCompleted:
		a.CompletedAt = &at
	default:
		return nil, fmt.Errorf("unsupported transition to %q", t.To)
	}
	a.Status = t.To
	a.UpdatedAt = at
	if t.FillAmount > 0 {
		a.Amount = t.FillAmount
	}
	cp := *a
	return &cp, nil
}

func (r *memoryAppointments) SetPaymentStatus(_ context.Context, id string, status domain.PaymentStatus) (*domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Cancelled() {
		return nil, ErrStateChanged
	}
	a.PaymentStatus = status
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *memoryAppointments) HasActive(_ context.Context, key domain.SlotKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.Status == domain.AppointmentStatusPending && a.SlotKey() == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryAppointments) List(_ context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Appointment, 0)
	for _, a := range r.appointments {
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func copyDoctor(d *domain.Doctor) *domain.Doctor {
	cp := *d
	cp.SlotsBooked = d.SlotsBooked.Clone()
	return &cp
}

var (
	_ DoctorRepository      = (*memoryDoctors)(nil)
	_ PatientRepository     = (*memoryPatients)(nil)
	_ AppointmentRepository = (*memoryAppointments)(nil)
)
