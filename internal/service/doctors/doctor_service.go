package doctors

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/repository"
	"github.com/rs/zerolog"
)

const latestAppointments = 5

type DoctorUseCase interface {
	List(ctx context.Context) ([]domain.Doctor, error)
	Get(ctx context.Context, id string) (*domain.Doctor, error)
	AddDoctor(ctx context.Context, input NewDoctor, actor domain.Actor) (*domain.Doctor, error)
	ChangeAvailability(ctx context.Context, id string, actor domain.Actor) (*domain.Doctor, error)
	UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate, actor domain.Actor) (*domain.Doctor, error)
	ListAppointments(ctx context.Context, actor domain.Actor) ([]domain.Appointment, error)
	Dashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error)
}

type DoctorCache interface {
	GetDoctors(ctx context.Context) ([]domain.Doctor, error)
	SetDoctors(ctx context.Context, doctors []domain.Doctor) error
	InvalidateDoctors(ctx context.Context) error
}

// NewDoctor is an admin's registration of a doctor. Image is a URL; uploads are
// handled outside this service.
type NewDoctor struct {
	Name       string
	Email      string
	Image      string
	Speciality string
	Degree     string
	Experience string
	About      string
	Fees       int64
	Address    domain.Address
}

type Dashboard struct {
	Earnings           int64                `json:"earnings"`
	Appointments       int                  `json:"appointments"`
	Patients           int64                `json:"patients"`
	Doctors            int                  `json:"doctors,omitempty"`
	LatestAppointments []domain.Appointment `json:"latestAppointments"`
}

type DoctorService struct {
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	appointments repository.AppointmentRepository
	cache        DoctorCache
	log          zerolog.Logger
}

func NewDoctorService(
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	appointments repository.AppointmentRepository,
	cache DoctorCache,
	log zerolog.Logger,
) *DoctorService {
	return &DoctorService{
		doctors:      doctors,
		patients:     patients,
		appointments: appointments,
		cache:        cache,
		log:          log.With().Str("service", "doctors").Logger(),
	}
}

// List returns the public doctor listing; contact emails are not exposed.
func (s *DoctorService) List(ctx context.Context) ([]domain.Doctor, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetDoctors(ctx); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.log.Warn().Err(err).Msg("doctors cache read failed")
		}
	}

	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	for i := range doctors {
		doctors[i].Email = ""
	}
	if s.cache != nil {
		if err := s.cache.SetDoctors(ctx, doctors); err != nil {
			s.log.Warn().Err(err).Msg("doctors cache write failed")
		}
	}
	return doctors, nil
}

func (s *DoctorService) Get(ctx context.Context, id string) (*domain.Doctor, error) {
	if id == "" {
		return nil, domain.Validation("doctor id is required")
	}
	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	doctor.Email = ""
	return doctor, nil
}

// AddDoctor registers a doctor with an empty calendar, accepting bookings.
func (s *DoctorService) AddDoctor(ctx context.Context, input NewDoctor, actor domain.Actor) (*domain.Doctor, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrUnauthorized
	}
	if err := validateNewDoctor(&input); err != nil {
		return nil, err
	}

	doctor := &domain.Doctor{
		Name:        input.Name,
		Email:       input.Email,
		Image:       input.Image,
		Speciality:  input.Speciality,
		Degree:      input.Degree,
		Experience:  input.Experience,
		About:       input.About,
		Fees:        input.Fees,
		Address:     input.Address,
		Available:   true,
		SlotsBooked: domain.SlotCalendar{},
		CreatedAt:   time.Now(),
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, domain.Infrastructure(err)
	}

	s.invalidate(ctx)
	s.log.Info().Str("doctor_id", doctor.ID).Str("speciality", doctor.Speciality).Msg("doctor added")
	return doctor, nil
}

// UpdateProfile changes the doctor's fee, address or availability. A new fee
// applies to later bookings; booked appointments keep their amount.
func (s *DoctorService) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate, actor domain.Actor) (*domain.Doctor, error) {
	if !canEditDoctor(actor, id) {
		return nil, domain.ErrUnauthorized
	}
	if update.Empty() {
		return nil, domain.Validation("nothing to update")
	}
	if update.Fees != nil && *update.Fees < 0 {
		return nil, domain.Validation("fees must not be negative")
	}

	doctor, err := s.doctors.UpdateProfile(ctx, id, update)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	doctor.Email = ""

	s.invalidate(ctx)
	s.log.Info().Str("doctor_id", id).Msg("doctor profile updated")
	return doctor, nil
}

// ChangeAvailability flips the doctor's booking switch. Existing appointments
// and calendar entries are not touched.
func (s *DoctorService) ChangeAvailability(ctx context.Context, id string, actor domain.Actor) (*domain.Doctor, error) {
	if !canEditDoctor(actor, id) {
		return nil, domain.ErrUnauthorized
	}
	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	if err := s.doctors.SetAvailability(ctx, id, !doctor.Available); err != nil {
		return nil, domain.Infrastructure(err)
	}
	doctor.Available = !doctor.Available
	doctor.Email = ""

	s.invalidate(ctx)
	s.log.Info().Str("doctor_id", id).Bool("available", doctor.Available).Msg("availability changed")
	return doctor, nil
}

func (s *DoctorService) ListAppointments(ctx context.Context, actor domain.Actor) ([]domain.Appointment, error) {
	filter, err := filterFor(actor)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	return appts, nil
}

// Dashboard summarises a doctor's own appointments, or the whole clinic for an admin.
// Earnings count completed or paid appointments that were not cancelled.
func (s *DoctorService) Dashboard(ctx context.Context, actor domain.Actor) (*Dashboard, error) {
	if actor.Role != domain.RoleDoctor && actor.Role != domain.RoleAdmin {
		return nil, domain.ErrUnauthorized
	}
	filter, err := filterFor(actor)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}

	dash := &Dashboard{Appointments: len(appts)}
	patients := make(map[string]struct{})
	for i := range appts {
		a := &appts[i]
		patients[a.PatientID] = struct{}{}
		if !a.Cancelled() && (a.Completed() || a.PaymentStatus == domain.PaymentStatusPaid) {
			dash.Earnings += a.Amount
		}
	}
	dash.LatestAppointments = appts[:min(latestAppointments, len(appts))]

	if actor.Role == domain.RoleAdmin {
		doctors, err := s.doctors.List(ctx)
		if err != nil {
			return nil, domain.Infrastructure(err)
		}
		dash.Doctors = len(doctors)
		if dash.Patients, err = s.patients.Count(ctx); err != nil {
			return nil, domain.Infrastructure(err)
		}
	} else {
		dash.Patients = int64(len(patients))
	}
	return dash, nil
}

func (s *DoctorService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDoctors(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate doctors cache")
	}
}

func canEditDoctor(actor domain.Actor, doctorID string) bool {
	return actor.Role == domain.RoleAdmin || (actor.Role == domain.RoleDoctor && actor.ID == doctorID)
}

func validateNewDoctor(input *NewDoctor) error {
	for _, f := range []*string{&input.Name, &input.Email, &input.Image, &input.Speciality, &input.Degree, &input.Experience, &input.About} {
		*f = strings.TrimSpace(*f)
	}
	if input.Name == "" || input.Email == "" || input.Speciality == "" || input.Degree == "" ||
		input.Experience == "" || input.About == "" || input.Address.Line1 == "" {
		return domain.Validation("Missing Details")
	}
	if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		return domain.Validation("Please enter a valid email")
	}
	if input.Fees <= 0 {
		return domain.Validation("fees must be positive")
	}
	return nil
}

func filterFor(actor domain.Actor) (repository.AppointmentFilter, error) {
	switch actor.Role {
	case domain.RolePatient:
		return repository.AppointmentFilter{PatientID: actor.ID}, nil
	case domain.RoleDoctor:
		return repository.AppointmentFilter{DoctorID: actor.ID}, nil
	case domain.RoleAdmin:
		return repository.AppointmentFilter{}, nil
	}
	return repository.AppointmentFilter{}, domain.ErrUnauthorized
}

var _ DoctorUseCase = (*DoctorService)(nil)
