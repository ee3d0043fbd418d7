package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prescripto/booking/internal/cache"
	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/kafka"
	"github.com/prescripto/booking/internal/payment"
	"github.com/prescripto/booking/internal/repository"
	"github.com/prescripto/booking/internal/service/booking"
	"github.com/prescripto/booking/internal/service/reconcile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payment.Order, error) {
	args := m.Called(ctx, amount, currency, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockGateway) FetchOrder(ctx context.Context, orderID string) (*payment.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type MockSlotLocker struct {
	mock.Mock
}

func (m *MockSlotLocker) AcquireSlotLock(ctx context.Context, key domain.SlotKey, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSlotLocker) ReleaseSlotLock(ctx context.Context, key domain.SlotKey, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

// pausingAppointments runs afterTransition once, between the status write and
// the calendar release of the lifecycle operation.
type pausingAppointments struct {
	repository.AppointmentRepository
	afterTransition func()
}

func (r *pausingAppointments) Transition(ctx context.Context, id string, t repository.Transition) (*domain.Appointment, error) {
	updated, err := r.AppointmentRepository.Transition(ctx, id, t)
	if err == nil && r.afterTransition != nil {
		hook := r.afterTransition
		r.afterTransition = nil
		hook()
	}
	return updated, err
}

type MockDoctorRepository struct {
	mock.Mock
}

func (m *MockDoctorRepository) Create(ctx context.Context, doctor *domain.Doctor) error {
	return m.Called(ctx, doctor).Error(0)
}

func (m *MockDoctorRepository) List(ctx context.Context) ([]domain.Doctor, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) GetByID(ctx context.Context, id string) (*domain.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	return m.Called(ctx, id, available).Error(0)
}

func (m *MockDoctorRepository) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate) (*domain.Doctor, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Doctor), args.Error(1)
}

func (m *MockDoctorRepository) ReleaseSlot(ctx context.Context, key domain.SlotKey) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

var fixedNow = time.Date(2025, 5, 6, 15, 0, 0, 0, time.UTC)

type fixture struct {
	store   *repository.MemoryStore
	doctor  *domain.Doctor
	patient domain.Actor
	appt    *domain.Appointment
}

// newFixture books 6_5_2025 2:00 PM with the doctor whose fee is 500.
func newFixture(t *testing.T, amount int64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	doctor := &domain.Doctor{Name: "Dr. Rao", Fees: 500, Available: true}
	require.NoError(t, store.Doctors().Create(ctx, doctor))

	appt := &domain.Appointment{
		PatientID:     "p1",
		DoctorID:      doctor.ID,
		SlotDate:      "6_5_2025",
		SlotTime:      "2:00 PM",
		Amount:        amount,
		Status:        domain.AppointmentStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Patient:       domain.PatientSnapshot{Name: "Asha", Email: "asha@example.com"},
		Doctor:        doctor.Snapshot(),
		CreatedAt:     fixedNow.Add(-time.Hour),
	}
	require.NoError(t, store.Appointments().CreateBooked(ctx, appt))
	return &fixture{store: store, doctor: doctor, patient: domain.Actor{ID: "p1", Role: domain.RolePatient}, appt: appt}
}

func (f *fixture) service(opts ...LifecycleServiceOption) *LifecycleService {
	opts = append([]LifecycleServiceOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewLifecycleService(f.store.Doctors(), f.store.Appointments(), zerolog.Nop(), opts...)
}

func (f *fixture) slotFree(t *testing.T) bool {
	t.Helper()
	doctor, err := f.store.Doctors().GetByID(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	return doctor.SlotsBooked.IsFree(f.appt.SlotDate, f.appt.SlotTime)
}

func TestLifecycleService_Cancel_ReleasesSlot(t *testing.T) {
	f := newFixture(t, 500)
	mockProducer := &MockProducer{}
	service := f.service(WithProducer(mockProducer, "appointments"))
	ctx := context.Background()
	require.False(t, f.slotFree(t))

	mockProducer.On("Publish", ctx, "appointments", f.appt.ID, mock.MatchedBy(func(e kafka.AppointmentEvent) bool {
		return e.Type == kafka.EventAppointmentCancelled
	})).Return(nil).Once()

	cancelled, err := service.Cancel(ctx, f.appt.ID, f.patient)

	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled())
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, fixedNow, *cancelled.CancelledAt)
	assert.True(t, f.slotFree(t))

	stored, err := f.store.Appointments().GetByID(ctx, f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentStatusCancelled, stored.Status)
	mockProducer.AssertExpectations(t)
}

func TestLifecycleService_Cancel_Idempotent(t *testing.T) {
	f := newFixture(t, 500)
	service := f.service()
	ctx := context.Background()

	// Another appointment on the same day must survive the second cancel.
	other := &domain.Appointment{PatientID: "p2", DoctorID: f.doctor.ID, SlotDate: "6_5_2025", SlotTime: "3:00 PM", Status: domain.AppointmentStatusPending}
	require.NoError(t, f.store.Appointments().CreateBooked(ctx, other))

	_, err := service.Cancel(ctx, f.appt.ID, f.patient)
	require.NoError(t, err)

	_, err = service.Cancel(ctx, f.appt.ID, f.patient)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	doctor, err := f.store.Doctors().GetByID(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"3:00 PM"}, doctor.SlotsBooked["6_5_2025"])
}

func TestLifecycleService_Cancel_Authorization(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name  string
		actor func(f *fixture) domain.Actor
		err   error
	}{
		{name: "other patient", actor: func(*fixture) domain.Actor { return domain.Actor{ID: "p2", Role: domain.RolePatient} }, err: domain.ErrUnauthorized},
		{name: "other doctor", actor: func(*fixture) domain.Actor { return domain.Actor{ID: "d2", Role: domain.RoleDoctor} }, err: domain.ErrUnauthorized},
		{name: "unknown role", actor: func(*fixture) domain.Actor { return domain.Actor{ID: "p1", Role: "nurse"} }, err: domain.ErrUnauthorized},
		{name: "assigned doctor", actor: func(f *fixture) domain.Actor { return domain.Actor{ID: f.doctor.ID, Role: domain.RoleDoctor} }},
		{name: "admin", actor: func(*fixture) domain.Actor { return domain.Actor{ID: "root", Role: domain.RoleAdmin} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 500)
			_, err := f.service().Cancel(ctx, f.appt.ID, tc.actor(f))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.False(t, f.slotFree(t))
				return
			}
			assert.NoError(t, err)
			assert.True(t, f.slotFree(t))
		})
	}
}

func TestLifecycleService_NotFound(t *testing.T) {
	f := newFixture(t, 500)
	service := f.service()
	ctx := context.Background()
	admin := domain.Actor{ID: "root", Role: domain.RoleAdmin}

	_, err := service.Cancel(ctx, "missing", admin)
	assert.ErrorIs(t, err, domain.ErrAppointmentNotFound)

	_, err = service.Complete(ctx, "missing", admin)
	assert.ErrorIs(t, err, domain.ErrAppointmentNotFound)

	_, err = service.Cancel(ctx, "", admin)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestLifecycleService_Complete_ReleasesSlotForAnyActor(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleDoctor, domain.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			f := newFixture(t, 500)
			actor := domain.Actor{ID: "root", Role: role}
			if role == domain.RoleDoctor {
				actor.ID = f.doctor.ID
			}

			done, err := f.service().Complete(context.Background(), f.appt.ID, actor)

			require.NoError(t, err)
			assert.True(t, done.Completed())
			require.NotNil(t, done.CompletedAt)
			assert.Equal(t, int64(500), done.Amount)
			assert.True(t, f.slotFree(t))
		})
	}
}

func TestLifecycleService_Complete_PatientRejected(t *testing.T) {
	f := newFixture(t, 500)

	_, err := f.service().Complete(context.Background(), f.appt.ID, f.patient)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, f.slotFree(t))
}

func TestLifecycleService_Complete_FillsMissingAmount(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	admin := domain.Actor{ID: "root", Role: domain.RoleAdmin}

	done, err := f.service().Complete(ctx, f.appt.ID, admin)

	require.NoError(t, err)
	assert.Equal(t, int64(500), done.Amount)
}

func TestLifecycleService_Complete_KeepsBookedAmount(t *testing.T) {
	f := newFixture(t, 350)
	admin := domain.Actor{ID: "root", Role: domain.RoleAdmin}

	done, err := f.service().Complete(context.Background(), f.appt.ID, admin)

	require.NoError(t, err)
	assert.Equal(t, int64(350), done.Amount)
}

func TestLifecycleService_MutualExclusivity(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{ID: "root", Role: domain.RoleAdmin}

	t.Run("complete after cancel", func(t *testing.T) {
		f := newFixture(t, 500)
		service := f.service()
		_, err := service.Cancel(ctx, f.appt.ID, admin)
		require.NoError(t, err)

		_, err = service.Complete(ctx, f.appt.ID, admin)
		assert.ErrorIs(t, err, domain.ErrCannotCompleteCancelled)
	})

	t.Run("cancel after complete", func(t *testing.T) {
		f := newFixture(t, 500)
		service := f.service()
		_, err := service.Complete(ctx, f.appt.ID, admin)
		require.NoError(t, err)

		_, err = service.Cancel(ctx, f.appt.ID, admin)
		assert.ErrorIs(t, err, domain.ErrCannotCancelCompleted)

		_, err = service.Complete(ctx, f.appt.ID, admin)
		assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	})

	t.Run("concurrent cancel and complete", func(t *testing.T) {
		f := newFixture(t, 500)
		service := f.service()

		var (
			wg         sync.WaitGroup
			cancelErr  error
			completeEr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = service.Cancel(ctx, f.appt.ID, admin)
		}()
		go func() {
			defer wg.Done()
			_, completeEr = service.Complete(ctx, f.appt.ID, admin)
		}()
		wg.Wait()

		assert.True(t, (cancelErr == nil) != (completeEr == nil), "exactly one transition must win")
		if cancelErr != nil {
			assert.ErrorIs(t, cancelErr, domain.ErrCannotCancelCompleted)
		} else {
			assert.ErrorIs(t, completeEr, domain.ErrCannotCompleteCancelled)
		}

		stored, err := f.store.Appointments().GetByID(ctx, f.appt.ID)
		require.NoError(t, err)
		assert.True(t, stored.Status.Terminal())
		assert.True(t, f.slotFree(t))
	})
}

func TestLifecycleService_Cancel_ReleaseFailureStillCancels(t *testing.T) {
	f := newFixture(t, 500)
	mockDoctors := &MockDoctorRepository{}
	service := NewLifecycleService(mockDoctors, f.store.Appointments(), zerolog.Nop())
	ctx := context.Background()

	mockDoctors.On("ReleaseSlot", ctx, f.appt.SlotKey()).Return(false, errors.New("write conflict")).Once()

	cancelled, err := service.Cancel(ctx, f.appt.ID, f.patient)

	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled())
	mockDoctors.AssertExpectations(t)
}

func TestLifecycleService_Cancel_SlotRebookedBeforeRelease(t *testing.T) {
	for _, withLock := range []bool{false, true} {
		name := "without slot lock"
		if withLock {
			name = "with slot lock"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 500)
			ctx := context.Background()
			for _, id := range []string{"p2", "p3"} {
				require.NoError(t, f.store.Patients().Create(ctx, &domain.Patient{ID: id, Name: id}))
			}

			var lifecycleOpts []LifecycleServiceOption
			var bookingOpts []booking.BookingServiceOption
			var reconcileOpts []reconcile.ReconcileServiceOption
			if withLock {
				locker := cache.NewLocalLocker()
				lifecycleOpts = append(lifecycleOpts, WithSlotLocker(locker, time.Minute))
				bookingOpts = append(bookingOpts, booking.WithSlotLocker(locker, time.Minute))
				reconcileOpts = append(reconcileOpts, reconcile.WithSlotLocker(locker, time.Minute))
			}
			bookings := booking.NewBookingService(f.store.Doctors(), f.store.Patients(), f.store.Appointments(), zerolog.Nop(), bookingOpts...)
			sweep := reconcile.NewReconcileService(f.store.Doctors(), f.store.Appointments(), zerolog.Nop(), reconcileOpts...)
			slot := booking.BookInput{DoctorID: f.doctor.ID, SlotDate: f.appt.SlotDate, SlotTime: f.appt.SlotTime}

			appointments := &pausingAppointments{AppointmentRepository: f.store.Appointments()}
			appointments.afterTransition = func() {
				report, err := sweep.Run(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, report.Removed)

				input := slot
				input.PatientID = "p2"
				_, err = bookings.BookAppointment(ctx, input)
				require.NoError(t, err)
			}
			opts := append([]LifecycleServiceOption{WithClock(func() time.Time { return fixedNow })}, lifecycleOpts...)
			service := NewLifecycleService(f.store.Doctors(), appointments, zerolog.Nop(), opts...)

			_, err := service.Cancel(ctx, f.appt.ID, f.patient)
			require.NoError(t, err)

			// p2 holds the slot; the late release must not have freed it.
			assert.False(t, f.slotFree(t))
			input := slot
			input.PatientID = "p3"
			_, err = bookings.BookAppointment(ctx, input)
			assert.ErrorIs(t, err, domain.ErrSlotAlreadyBooked)

			appts, err := f.store.Appointments().List(ctx, repository.AppointmentFilter{DoctorID: f.doctor.ID})
			require.NoError(t, err)
			pending := 0
			for _, a := range appts {
				if a.Status == domain.AppointmentStatusPending {
					pending++
					assert.Equal(t, "p2", a.PatientID)
				}
			}
			assert.Equal(t, 1, pending)
		})
	}
}

func TestLifecycleService_Cancel_ReleasesUnderSlotLock(t *testing.T) {
	f := newFixture(t, 500)
	mockLocker := &MockSlotLocker{}
	service := f.service(WithSlotLocker(mockLocker, 5*time.Second))
	ctx := context.Background()

	mockLocker.On("AcquireSlotLock", ctx, f.appt.SlotKey(), 5*time.Second).Return("tok-1", true, nil).Once()
	mockLocker.On("ReleaseSlotLock", mock.Anything, f.appt.SlotKey(), "tok-1").Return(nil).Once()

	_, err := service.Cancel(ctx, f.appt.ID, f.patient)

	require.NoError(t, err)
	assert.True(t, f.slotFree(t))
	mockLocker.AssertExpectations(t)
}

func TestLifecycleService_Cancel_SlotLockedLeavesEntryForSweep(t *testing.T) {
	f := newFixture(t, 500)
	mockLocker := &MockSlotLocker{}
	service := f.service(WithSlotLocker(mockLocker, time.Minute))
	ctx := context.Background()

	mockLocker.On("AcquireSlotLock", ctx, f.appt.SlotKey(), time.Minute).Return("", false, nil).Once()

	cancelled, err := service.Cancel(ctx, f.appt.ID, f.patient)

	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled())
	assert.False(t, f.slotFree(t))
	mockLocker.AssertNotCalled(t, "ReleaseSlotLock", mock.Anything, mock.Anything, mock.Anything)

	report, err := reconcile.NewReconcileService(f.store.Doctors(), f.store.Appointments(), zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.True(t, f.slotFree(t))
}

func TestLifecycleService_Complete_LockErrorStillReleases(t *testing.T) {
	f := newFixture(t, 500)
	mockLocker := &MockSlotLocker{}
	service := f.service(WithSlotLocker(mockLocker, time.Minute))
	ctx := context.Background()
	admin := domain.Actor{ID: "root", Role: domain.RoleAdmin}

	mockLocker.On("AcquireSlotLock", ctx, f.appt.SlotKey(), time.Minute).Return("", false, errors.New("redis down")).Once()

	_, err := service.Complete(ctx, f.appt.ID, admin)

	require.NoError(t, err)
	assert.True(t, f.slotFree(t))
	mockLocker.AssertNotCalled(t, "ReleaseSlotLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_CreatePaymentOrder(t *testing.T) {
	f := newFixture(t, 500)
	gateway := &MockGateway{}
	service := f.service(WithPaymentGateway(gateway, "INR"))
	ctx := context.Background()

	gateway.On("CreateOrder", ctx, int64(50000), "INR", f.appt.ID).
		Return(&payment.Order{ID: "order_1", Amount: 50000, Currency: "INR", Receipt: f.appt.ID, Status: "created"}, nil).Once()

	order, err := service.CreatePaymentOrder(ctx, f.appt.ID, f.patient)

	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ID)
	gateway.AssertExpectations(t)

	_, err = service.CreatePaymentOrder(ctx, f.appt.ID, domain.Actor{ID: f.doctor.ID, Role: domain.RoleDoctor})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLifecycleService_CreatePaymentOrder_Cancelled(t *testing.T) {
	f := newFixture(t, 500)
	gateway := &MockGateway{}
	service := f.service(WithPaymentGateway(gateway, "INR"))
	ctx := context.Background()

	_, err := service.Cancel(ctx, f.appt.ID, f.patient)
	require.NoError(t, err)

	_, err = service.CreatePaymentOrder(ctx, f.appt.ID, f.patient)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycleService_PaymentWithoutGateway(t *testing.T) {
	f := newFixture(t, 500)

	_, err := f.service().CreatePaymentOrder(context.Background(), f.appt.ID, f.patient)

	assert.Equal(t, domain.KindInfrastructure, domain.KindOf(err))
}

func TestLifecycleService_VerifyPayment(t *testing.T) {
	f := newFixture(t, 500)
	gateway := &MockGateway{}
	service := f.service(WithPaymentGateway(gateway, "INR"))
	ctx := context.Background()

	gateway.On("FetchOrder", ctx, "order_1").Return(&payment.Order{ID: "order_1", Receipt: f.appt.ID, Status: payment.StatusPaid}, nil)

	paid, err := service.VerifyPayment(ctx, "order_1", f.patient)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, paid.PaymentStatus)
	assert.Equal(t, domain.AppointmentStatusPending, paid.Status)
	assert.False(t, f.slotFree(t))

	again, err := service.VerifyPayment(ctx, "order_1", f.patient)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, again.PaymentStatus)
}

func TestLifecycleService_VerifyPayment_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("order not paid", func(t *testing.T) {
		f := newFixture(t, 500)
		gateway := &MockGateway{}
		gateway.On("FetchOrder", ctx, "order_1").Return(&payment.Order{ID: "order_1", Receipt: f.appt.ID, Status: "attempted"}, nil)

		_, err := f.service(WithPaymentGateway(gateway, "INR")).VerifyPayment(ctx, "order_1", f.patient)
		assert.ErrorIs(t, err, domain.ErrPaymentFailed)
	})

	t.Run("gateway error", func(t *testing.T) {
		f := newFixture(t, 500)
		gateway := &MockGateway{}
		gateway.On("FetchOrder", ctx, "order_1").Return(nil, errors.New("timeout"))

		_, err := f.service(WithPaymentGateway(gateway, "INR")).VerifyPayment(ctx, "order_1", f.patient)
		assert.Equal(t, domain.KindInfrastructure, domain.KindOf(err))
	})

	t.Run("missing order id", func(t *testing.T) {
		f := newFixture(t, 500)
		_, err := f.service(WithPaymentGateway(&MockGateway{}, "INR")).VerifyPayment(ctx, "", f.patient)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}
