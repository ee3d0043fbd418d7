package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound       ErrorKind = "NotFound"
	KindUnauthorized   ErrorKind = "Unauthorized"
	KindInvalidState   ErrorKind = "InvalidState"
	KindConflict       ErrorKind = "Conflict"
	KindValidation     ErrorKind = "ValidationError"
	KindInfrastructure ErrorKind = "InfrastructureError"
)

// Error is an expected outcome of a booking or lifecycle operation. Code is stable
// and machine-readable; Message is safe to show to a user.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// Error never includes the wrapped cause of an infrastructure failure; it is
// reachable through Unwrap for logging.
func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindInfrastructure {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so wrapped copies compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrDoctorNotFound          = &Error{Kind: KindNotFound, Code: "DOCTOR_NOT_FOUND", Message: "Doctor not found"}
	ErrPatientNotFound         = &Error{Kind: KindNotFound, Code: "PATIENT_NOT_FOUND", Message: "Patient not found"}
	ErrAppointmentNotFound     = &Error{Kind: KindNotFound, Code: "APPOINTMENT_NOT_FOUND", Message: "Appointment not found"}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: "Unauthorized action"}
	ErrDoctorUnavailable       = &Error{Kind: KindInvalidState, Code: "DOCTOR_UNAVAILABLE", Message: "Doctor not available"}
	ErrAlreadyCancelled        = &Error{Kind: KindInvalidState, Code: "ALREADY_CANCELLED", Message: "Appointment is already cancelled"}
	ErrAlreadyCompleted        = &Error{Kind: KindInvalidState, Code: "ALREADY_COMPLETED", Message: "Appointment is already completed"}
	ErrCannotCancelCompleted   = &Error{Kind: KindInvalidState, Code: "CANNOT_CANCEL_COMPLETED", Message: "Cannot cancel a completed appointment"}
	ErrCannotCompleteCancelled = &Error{Kind: KindInvalidState, Code: "CANNOT_COMPLETE_CANCELLED", Message: "Cannot complete a cancelled appointment"}
	ErrSlotAlreadyBooked       = &Error{Kind: KindConflict, Code: "SLOT_ALREADY_BOOKED", Message: "This time slot is already booked. Please choose another time."}
	ErrPaymentFailed           = &Error{Kind: KindInvalidState, Code: "PAYMENT_FAILED", Message: "Payment failed"}
	ErrAlreadyPaid             = &Error{Kind: KindInvalidState, Code: "ALREADY_PAID", Message: "Appointment is already paid"}
	ErrSweepRequiresLock       = &Error{Kind: KindInvalidState, Code: "SWEEP_REQUIRES_LOCK", Message: "Reconciliation needs a shared slot lock store for this database"}
)

// Validation builds a ValidationError with a user-facing message.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: fmt.Sprintf(format, args...)}
}

// Infrastructure wraps a persistence or transport failure. The wrapped error is
// kept for logging; Message stays generic.
func Infrastructure(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindInfrastructure, Code: "INTERNAL_ERROR", Message: "Internal server error", Err: err}
}

// KindOf returns the kind of err, treating unknown errors as infrastructure failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}

// Cause returns the wrapped failure behind an infrastructure error, for logs.
func Cause(err error) error {
	var de *Error
	if errors.As(err, &de) && de.Kind == KindInfrastructure && de.Err != nil {
		return de.Err
	}
	return err
}
