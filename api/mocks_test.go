package api

import (
	"context"

	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/payment"
	"github.com/prescripto/booking/internal/repository"
	"github.com/prescripto/booking/internal/service/booking"
	"github.com/prescripto/booking/internal/service/doctors"
	"github.com/prescripto/booking/internal/service/reconcile"
	"github.com/stretchr/testify/mock"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CheckAvailability(ctx context.Context, doctorID, slotDate, slotTime string) (domain.Availability, error) {
	args := m.Called(ctx, doctorID, slotDate, slotTime)
	return args.Get(0).(domain.Availability), args.Error(1)
}

func (m *MockBookingUseCase) BookAppointment(ctx context.Context, input booking.BookInput) (*domain.Appointment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

// MockLifecycleUseCase is a mock implementation of lifecycle.LifecycleUseCase
type MockLifecycleUseCase struct {
	mock.Mock
}

func (m *MockLifecycleUseCase) Cancel(ctx context.Context, appointmentID string, actor domain.Actor) (*domain.Appointment, error) {
	args := m.Called(ctx, appointmentID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

func (m *MockLifecycleUseCase) Complete(ctx context.Context, appointmentID string, actor domain.Actor) (*domain.Appointment, error) {
	args := m.Called(ctx, appointmentID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

func (m *MockLifecycleUseCase) CreatePaymentOrder(ctx context.Context, appointmentID string, actor domain.Actor) (*payment.Order, error) {
	args := m.Called(ctx, appointmentID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Order), args.Error(1)
}

func (m *MockLifecycleUseCase) VerifyPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Appointment, error) {
	args := m.Called(ctx, orderID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Appointment), args.Error(1)
}

// MockDoctorUseCase is a mock implementation of doctors.DoctorUseCase
type MockDoctorUseCase struct {
	mock.Mock
}

func (m *MockDoctorUseCase) List(ctx context.Context) ([]domain.Doctor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Doctor), args.Error(1)
}

func (m *MockDoctorUseCase) Get(ctx context.Context, id string) (*domain.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Doctor), args.Error(1)
}

func (m *MockDoctorUseCase) AddDoctor(ctx context.Context, input doctors.NewDoctor, actor domain.Actor) (*domain.Doctor, error) {
	args := m.Called(ctx, input, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Doctor), args.Error(1)
}

func (m *MockDoctorUseCase) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate, actor domain.Actor) (*domain.Doctor, error) {
	args := m.Called(ctx, id, update, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Doctor), args.Error(1)
}

func (m *MockDoctorUseCase) ChangeAvailability(ctx context.Context, id string, actor domain.Actor) (*domain.Doctor, error) {
	args := m.Called(ctx, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Doctor), args.Error(1)
}

func (m *MockDoctorUseCase) ListAppointments(ctx context.Context, actor domain.Actor) ([]domain.Appointment, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Appointment), args.Error(1)
}

func (m *MockDoctorUseCase) Dashboard(ctx context.Context, actor domain.Actor) (*doctors.Dashboard, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*doctors.Dashboard), args.Error(1)
}

// MockReconcileUseCase is a mock implementation of reconcile.ReconcileUseCase
type MockReconcileUseCase struct {
	mock.Mock
}

func (m *MockReconcileUseCase) Run(ctx context.Context) (reconcile.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(reconcile.Report), args.Error(1)
}
