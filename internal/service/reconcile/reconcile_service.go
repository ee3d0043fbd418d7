package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/repository"
	"github.com/rs/zerolog"
)

type ReconcileUseCase interface {
	Run(ctx context.Context) (Report, error)
}

type SlotLocker interface {
	AcquireSlotLock(ctx context.Context, key domain.SlotKey, ttl time.Duration) (string, bool, error)
	ReleaseSlotLock(ctx context.Context, key domain.SlotKey, token string) error
}

type DoctorsCache interface {
	InvalidateDoctors(ctx context.Context) error
}

type Report struct {
	DoctorsScanned int `json:"doctorsScanned"`
	DoctorsChanged int `json:"doctorsChanged"`
	// Removed counts phantom slots deleted from calendars.
	Removed int `json:"removed"`
	// Skipped counts slots left alone because a booking held their lock.
	Skipped int `json:"skipped"`
}

type ReconcileService struct {
	doctors      repository.DoctorRepository
	appointments repository.AppointmentRepository
	locker       SlotLocker
	lockTTL      time.Duration
	cache        DoctorsCache
	requireLock  bool
	log          zerolog.Logger
}

type ReconcileServiceOption func(*ReconcileService)

func WithSlotLocker(locker SlotLocker, ttl time.Duration) ReconcileServiceOption {
	return func(s *ReconcileService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithDoctorsCache(cache DoctorsCache) ReconcileServiceOption {
	return func(s *ReconcileService) {
		s.cache = cache
	}
}

// RequireSlotLock makes Run refuse to sweep without a slot locker. Stores that
// occupy the calendar and insert the appointment in separate writes need it:
// the lock is the only thing keeping the sweep off a booking in flight.
func RequireSlotLock() ReconcileServiceOption {
	return func(s *ReconcileService) {
		s.requireLock = true
	}
}

func NewReconcileService(
	doctors repository.DoctorRepository,
	appointments repository.AppointmentRepository,
	log zerolog.Logger,
	opts ...ReconcileServiceOption,
) *ReconcileService {
	service := &ReconcileService{
		doctors:      doctors,
		appointments: appointments,
		lockTTL:      30 * time.Second,
		log:          log.With().Str("service", "reconcile").Logger(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Run removes calendar entries that no pending appointment holds. It only ever
// deletes, so it is safe to repeat and to run beside live bookings.
func (s *ReconcileService) Run(ctx context.Context) (Report, error) {
	var report Report
	if s.requireLock && s.locker == nil {
		return report, domain.ErrSweepRequiresLock
	}

	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return report, domain.Infrastructure(err)
	}

	for i := range doctors {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		doctor := &doctors[i]
		report.DoctorsScanned++

		removed := 0
		for _, key := range occupiedSlots(doctor) {
			outcome, err := s.reconcileSlot(ctx, key)
			if err != nil {
				return report, domain.Infrastructure(err)
			}
			switch outcome {
			case slotRemoved:
				removed++
			case slotSkipped:
				report.Skipped++
			}
		}
		if removed > 0 {
			report.DoctorsChanged++
			report.Removed += removed
			s.log.Info().Str("doctor_id", doctor.ID).Int("removed", removed).Msg("phantom slots removed")
		}
	}

	if report.Removed > 0 && s.cache != nil {
		if err := s.cache.InvalidateDoctors(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to invalidate doctors cache")
		}
	}
	s.log.Info().
		Int("doctors_scanned", report.DoctorsScanned).
		Int("doctors_changed", report.DoctorsChanged).
		Int("removed", report.Removed).
		Int("skipped", report.Skipped).
		Msg("reconciliation finished")
	return report, nil
}

type slotOutcome int

const (
	slotKept slotOutcome = iota
	slotRemoved
	slotSkipped
)

func (s *ReconcileService) reconcileSlot(ctx context.Context, key domain.SlotKey) (slotOutcome, error) {
	active, err := s.appointments.HasActive(ctx, key)
	if err != nil || active {
		return slotKept, err
	}

	if s.locker != nil {
		// A booking occupies the calendar before its appointment is stored; holding
		// the slot lock keeps the sweep from deleting that in-flight entry.
		token, ok, err := s.locker.AcquireSlotLock(ctx, key, s.lockTTL)
		if err != nil {
			return slotKept, err
		}
		if !ok {
			return slotSkipped, nil
		}
		defer func() {
			if err := s.locker.ReleaseSlotLock(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn().Err(err).Str("slot", key.String()).Msg("failed to release slot lock")
			}
		}()

		active, err = s.appointments.HasActive(ctx, key)
		if err != nil || active {
			return slotKept, err
		}
	}

	removed, err := s.doctors.ReleaseSlot(ctx, key)
	if err != nil {
		return slotKept, err
	}
	if !removed {
		return slotKept, nil
	}
	return slotRemoved, nil
}

// occupiedSlots lists every (date, time) on the calendar in a stable order.
// Duplicated times appear once per occurrence.
func occupiedSlots(doctor *domain.Doctor) []domain.SlotKey {
	dates := make([]string, 0, len(doctor.SlotsBooked))
	for date := range doctor.SlotsBooked {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	keys := make([]domain.SlotKey, 0, doctor.SlotsBooked.Count())
	for _, date := range dates {
		for _, t := range doctor.SlotsBooked[date] {
			keys = append(keys, domain.SlotKey{DoctorID: doctor.ID, Date: date, Time: t})
		}
	}
	return keys
}

var _ ReconcileUseCase = (*ReconcileService)(nil)
