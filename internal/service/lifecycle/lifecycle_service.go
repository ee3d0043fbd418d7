package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/kafka"
	"github.com/prescripto/booking/internal/payment"
	"github.com/prescripto/booking/internal/repository"
	"github.com/rs/zerolog"
)

type LifecycleUseCase interface {
	Cancel(ctx context.Context, appointmentID string, actor domain.Actor) (*domain.Appointment, error)
	Complete(ctx context.Context, appointmentID string, actor domain.Actor) (*domain.Appointment, error)
	CreatePaymentOrder(ctx context.Context, appointmentID string, actor domain.Actor) (*payment.Order, error)
	VerifyPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Appointment, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payment.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*payment.Order, error)
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

var errGatewayMissing = errors.New("payment gateway is not configured")

type LifecycleService struct {
	doctors            repository.DoctorRepository
	appointments       repository.AppointmentRepository
	gateway            PaymentGateway
	currency           string
	locker             SlotLocker
	lockTTL            time.Duration
	cache              DoctorsCache
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	log                zerolog.Logger
	now                func() time.Time
}

type LifecycleServiceOption func(*LifecycleService)

func WithPaymentGateway(gateway PaymentGateway, currency string) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.gateway = gateway
		s.currency = currency
	}
}

func WithSlotLocker(locker SlotLocker, ttl time.Duration) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithDoctorsCache(cache DoctorsCache) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, eventsTopic string) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.producer = producer
		s.eventsTopic = eventsTopic
	}
}

func WithNotificationsTopic(topic string) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.notificationsTopic = topic
	}
}

func WithClock(now func() time.Time) LifecycleServiceOption {
	return func(s *LifecycleService) {
		s.now = now
	}
}

func NewLifecycleService(
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	log zerolog.Logger,
	opts ...LifecycleServiceOption,
) *LifecycleService {
	service := &LifecycleService{
		doctors:      doctors,
		appointments: appointments,
		currency:     "INR",
		lockTTL:      30 * time.Second,
		log:          log.With().Str("service", "lifecycle").Logger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *LifecycleService) Cancel(ctx context.Context, appointmentID string, actor domain.Actor) (*domain.Appointment, error) {
	current, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(current) {
		return nil, domain.ErrUnauthorized
	}
	if err := cancelGuard(current); err != nil {
		return nil, err
	}

	updated, err := s.appointments.Transition(ctx, current.ID, repository.Transition{
		To: domain.AppointmentStatusCancelled,
		At: s.now(),
	})
	if err != nil {
		return nil, s.lostRace(ctx, current.ID, err, cancelGuard)
	}

	s.releaseSlot(ctx, updated)
	s.log.Info().Str("appointment_id", updated.ID).Str("actor_role", string(actor.Role)).Msg("appointment cancelled")
	s.afterChange(ctx, kafka.EventAppointmentCancelled, updated)
	return updated, nil
}

func (s *LifecycleService) Complete(ctx context.Context, appointmentID string, actor domain.Actor) (*domain.Appointment, error) {
	current, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanComplete(current) {
		return nil, domain.ErrUnauthorized
	}
	if err := completeGuard(current); err != nil {
		return nil, err
	}

	t := repository.Transition{To: domain.AppointmentStatusCompleted, At: s.now()}
	if current.Amount == 0 {
		// Unpriced appointments take the doctor's fee at completion time.
		doctor, err := s.doctors.GetByID(ctx, current.DoctorID)
		switch {
		case err == nil:
			t.FillAmount = doctor.Fees
		case errors.Is(err, domain.ErrDoctorNotFound):
		default:
			return nil, domain.Infrastructure(err)
		}
	}

	updated, err := s.appointments.Transition(ctx, current.ID, t)
	if err != nil {
		return nil, s.lostRace(ctx, current.ID, err, completeGuard)
	}

	s.releaseSlot(ctx, updated)
	s.log.Info().Str("appointment_id", updated.ID).Str("actor_role", string(actor.Role)).Msg("appointment completed")
	s.afterChange(ctx, kafka.EventAppointmentCompleted, updated)
	return updated, nil
}

// CreatePaymentOrder opens a gateway order for the appointment amount. The
// receipt carries the appointment id so verification can find it again.
func (s *LifecycleService) CreatePaymentOrder(ctx context.Context, appointmentID string, actor domain.Actor) (*payment.Order, error) {
	if s.gateway == nil {
		return nil, domain.Infrastructure(errGatewayMissing)
	}
	appt, err := s.load(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanPay(appt) {
		return nil, domain.ErrUnauthorized
	}
	if appt.Cancelled() {
		return nil, domain.ErrAlreadyCancelled
	}
	if appt.PaymentStatus == domain.PaymentStatusPaid {
		return nil, domain.ErrAlreadyPaid
	}

	order, err := s.gateway.CreateOrder(ctx, appt.Amount*100, s.currency, appt.ID)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	return order, nil
}

// VerifyPayment marks the appointment paid once the gateway reports the order paid.
func (s *LifecycleService) VerifyPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Appointment, error) {
	if orderID == "" {
		return nil, domain.Validation("order id is required")
	}
	if s.gateway == nil {
		return nil, domain.Infrastructure(errGatewayMissing)
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	if !order.Paid() {
		return nil, domain.ErrPaymentFailed
	}

	appt, err := s.load(ctx, order.Receipt)
	if err != nil {
		return nil, err
	}
	if !actor.CanPay(appt) {
		return nil, domain.ErrUnauthorized
	}
	if appt.PaymentStatus == domain.PaymentStatusPaid {
		return appt, nil
	}

	updated, err := s.appointments.SetPaymentStatus(ctx, appt.ID, domain.PaymentStatusPaid)
	if err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, domain.ErrAlreadyCancelled
		}
		return nil, domain.Infrastructure(err)
	}
	s.log.Info().Str("appointment_id", updated.ID).Str("order_id", order.ID).Msg("payment confirmed")
	if err := s.publish(ctx, kafka.EventAppointmentPaid, updated); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", updated.ID).Msg("failed to publish event")
	}
	return updated, nil
}

func (s *LifecycleService) load(ctx context.Context, appointmentID string) (*domain.Appointment, error) {
	if appointmentID == "" {
		return nil, domain.Validation("appointment id is required")
	}
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, domain.Infrastructure(err)
	}
	return appt, nil
}

// lostRace classifies a failed conditional transition by re-reading the appointment.
func (s *LifecycleService) lostRace(ctx context.Context, id string, err error, guard func(*domain.Appointment) error) error {
	if !errors.Is(err, repository.ErrStateChanged) {
		return domain.Infrastructure(err)
	}
	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return domain.Infrastructure(err)
	}
	if gerr := guard(current); gerr != nil {
		return gerr
	}
	return domain.Infrastructure(repository.ErrStateChanged)
}

// releaseSlot frees the calendar entry of a terminal appointment. The appointment
// is already terminal, so by now the sweep may have removed the entry and a new
// booking may hold the slot; the release only happens under the slot lock and
// while no pending appointment holds the slot. Failures leave at most a phantom
// slot behind for the reconciliation sweep, so they are logged, not returned.
func (s *LifecycleService) releaseSlot(ctx context.Context, appt *domain.Appointment) {
	key := appt.SlotKey()
	logger := s.log.With().Str("appointment_id", appt.ID).Str("slot", key.String()).Logger()

	if s.locker != nil {
		token, ok, err := s.locker.AcquireSlotLock(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("slot lock unavailable, releasing without it")
		case !ok:
			logger.Warn().Msg("slot is locked by another operation, leaving it to reconciliation")
			return
		default:
			defer func() {
				if err := s.locker.ReleaseSlotLock(context.WithoutCancel(ctx), key, token); err != nil {
					logger.Warn().Err(err).Msg("failed to release slot lock")
				}
			}()
		}
	}

	active, err := s.appointments.HasActive(ctx, key)
	if err != nil {
		logger.Error().Err(domain.Cause(err)).Msg("failed to check slot before release")
		return
	}
	if active {
		logger.Info().Msg("slot was booked again, keeping it")
		return
	}

	removed, err := s.doctors.ReleaseSlot(ctx, key)
	if err != nil {
		logger.Error().Err(domain.Cause(err)).Msg("failed to release slot")
		return
	}
	if !removed {
		logger.Warn().Msg("slot was not held on the calendar")
	}
}

func (s *LifecycleService) afterChange(ctx context.Context, eventType string, appt *domain.Appointment) {
	if s.cache != nil {
		if err := s.cache.InvalidateDoctors(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to invalidate doctors cache")
		}
	}
	if err := s.publish(ctx, eventType, appt); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", appt.ID).Str("event", eventType).Msg("failed to publish event")
	}
}

func (s *LifecycleService) publish(ctx context.Context, eventType string, appt *domain.Appointment) error {
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

func cancelGuard(a *domain.Appointment) error {
	switch a.Status {
	case domain.AppointmentStatusCancelled:
		return domain.ErrAlreadyCancelled
	case domain.AppointmentStatusCompleted:
		return domain.ErrCannotCancelCompleted
	}
	return nil
}

func completeGuard(a *domain.Appointment) error {
	switch a.Status {
	case domain.AppointmentStatusCompleted:
		return domain.ErrAlreadyCompleted
	case domain.AppointmentStatusCancelled:
		return domain.ErrCannotCompleteCancelled
	}
	return nil
}

var _ LifecycleUseCase = (*LifecycleService)(nil)
