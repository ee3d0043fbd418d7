package booking

import (
	"context"
	"strings"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/kafka"
	"github.com/prescripto/booking/internal/repository"
	"github.com/rs/zerolog"
)

type BookingUseCase interface {
	CheckAvailability(ctx context.Context, doctorID, slotDate, slotTime string) (domain.Availability, error)
	BookAppointment(ctx context.Context, input BookInput) (*domain.Appointment, error)
}

type SlotLocker interface {
	AcquireSlotLock(ctx context.Context, key domain.SlotKey, ttl time.Duration) (string, bool, error)
	ReleaseSlotLock(ctx context.Context, key domain.SlotKey, token string) error
}

type DoctorsCache interface {
	InvalidateDoctors(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookInput struct {
	PatientID string
	DoctorID  string
	SlotDate  string
	SlotTime  string
	// BookedBy is the role of the caller making the booking.
	BookedBy domain.Role
	// Amount overrides the doctor's fee when set. Only admins may set it.
	Amount *int64
}

type BookingService struct {
	doctors            repository.DoctorRepository
	patients           repository.PatientRepository
	appointments       repository.AppointmentRepository
	locker             SlotLocker
	lockTTL            time.Duration
	cache              DoctorsCache
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	log                zerolog.Logger
	now                func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithSlotLocker(locker SlotLocker, ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithDoctorsCache(cache DoctorsCache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, eventsTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = eventsTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	appointments repository.AppointmentRepository,
	log zerolog.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		doctors:      doctors,
		patients:     patients,
		appointments: appointments,
		lockTTL:      30 * time.Second,
		log:          log.With().Str("service", "booking").Logger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CheckAvailability is advisory: the answer may be stale by the time a booking is made.
func (s *BookingService) CheckAvailability(ctx context.Context, doctorID, slotDate, slotTime string) (domain.Availability, error) {
	if err := validateSlot(doctorID, slotDate, slotTime); err != nil {
		return "", err
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return "", domain.Infrastructure(err)
	}
	switch {
	case !doctor.Available:
		return domain.AvailabilityUnavailableDoctor, nil
	case !doctor.SlotsBooked.IsFree(slotDate, slotTime):
		return domain.AvailabilitySlotTaken, nil
	}
	return domain.AvailabilityAvailable, nil
}

func (s *BookingService) BookAppointment(ctx context.Context, input BookInput) (*domain.Appointment, error) {
	input.DoctorID = strings.TrimSpace(input.DoctorID)
	input.SlotDate = strings.TrimSpace(input.SlotDate)
	input.SlotTime = strings.TrimSpace(input.SlotTime)
	if input.PatientID == "" {
		return nil, domain.Validation("patient is required")
	}
	if err := validateSlot(input.DoctorID, input.SlotDate, input.SlotTime); err != nil {
		return nil, err
	}
	if input.Amount != nil {
		if *input.Amount < 0 {
			return nil, domain.Validation("amount must not be negative")
		}
		if input.BookedBy != domain.RoleAdmin {
			return nil, domain.ErrUnauthorized
		}
	}

	doctor, err := s.doctors.GetByID(ctx, input.DoctorID)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	if !doctor.Available {
		return nil, domain.ErrDoctorUnavailable
	}

	key := domain.SlotKey{DoctorID: doctor.ID, Date: input.SlotDate, Time: input.SlotTime}
	if s.locker != nil {
		token, ok, err := s.locker.AcquireSlotLock(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			// The conditional calendar write still guards the slot.
			s.log.Warn().Err(err).Str("slot", key.String()).Msg("slot lock unavailable, continuing without it")
		case !ok:
			return nil, domain.ErrSlotAlreadyBooked
		default:
			defer func() {
				if err := s.locker.ReleaseSlotLock(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn().Err(err).Str("slot", key.String()).Msg("failed to release slot lock")
				}
			}()
		}
	}

	if !doctor.SlotsBooked.IsFree(input.SlotDate, input.SlotTime) {
		return nil, domain.ErrSlotAlreadyBooked
	}

	patient, err := s.patients.GetByID(ctx, input.PatientID)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}

	amount := doctor.Fees
	if input.Amount != nil {
		amount = *input.Amount
	}
	now := s.now()
	appt := &domain.Appointment{
		PatientID:     patient.ID,
		DoctorID:      doctor.ID,
		SlotDate:      input.SlotDate,
		SlotTime:      input.SlotTime,
		Amount:        amount,
		Status:        domain.AppointmentStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Patient:       patient.Snapshot(),
		Doctor:        doctor.Snapshot(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.appointments.CreateBooked(ctx, appt); err != nil {
		return nil, domain.Infrastructure(err)
	}

	s.log.Info().
		Str("appointment_id", appt.ID).
		Str("slot", key.String()).
		Msg("appointment booked")
	s.afterCalendarChange(ctx, kafka.EventAppointmentBooked, appt)
	return appt, nil
}

func (s *BookingService) afterCalendarChange(ctx context.Context, eventType string, appt *domain.Appointment) {
	if s.cache != nil {
		if err := s.cache.InvalidateDoctors(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to invalidate doctors cache")
		}
	}
	if err := s.publish(ctx, eventType, appt); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, appt *domain.Appointment) error {
	if s.producer == nil || s.eventsTopic == "" {
		return nil
	}
	event := kafka.NewAppointmentEvent(eventType, appt, s.now())
	if err := s.producer.Publish(ctx, s.eventsTopic, appt.ID, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, appt.ID, event)
	}
	return nil
}

func validateSlot(doctorID, slotDate, slotTime string) error {
	if doctorID == "" || slotDate == "" || slotTime == "" {
		return domain.Validation("doctor, slot date and slot time are required")
	}
	if _, err := domain.ParseDateKey(slotDate); err != nil {
		return domain.Validation("slot date %q must use the D_M_YYYY format", slotDate)
	}
	if !domain.ValidSlotTime(slotTime) {
		return domain.Validation("slot time %q must look like 10:30 AM", slotTime)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
