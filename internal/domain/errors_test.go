package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesOnCode(t *testing.T) {
	wrapped := fmt.Errorf("book: %w", ErrSlotAlreadyBooked)

	assert.True(t, errors.Is(wrapped, ErrSlotAlreadyBooked))
	assert.False(t, errors.Is(wrapped, ErrAlreadyCancelled))
	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestInfrastructure(t *testing.T) {
	assert.NoError(t, Infrastructure(nil))

	cause := errors.New("connection refused")
	err := Infrastructure(cause)
	assert.Equal(t, KindInfrastructure, KindOf(err))
	assert.True(t, errors.Is(err, cause))

	var de *Error
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "Internal server error", de.Message)

	assert.Equal(t, "Internal server error", err.Error())
	assert.NotContains(t, Infrastructure(errors.New("dial tcp 10.0.0.5:27017: connection refused")).Error(), "10.0.0.5")
	assert.Same(t, cause, Cause(err))

	// typed outcomes pass through untouched
	assert.Same(t, ErrDoctorNotFound, Infrastructure(ErrDoctorNotFound))
}

func TestError_MessageKeepsNonInfrastructureCause(t *testing.T) {
	err := &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "bad slot", Err: errors.New("parse 32_1_2025")}
	assert.Equal(t, "bad slot: parse 32_1_2025", err.Error())
	assert.Same(t, err, Cause(err))
}

func TestKindOf_UnknownError(t *testing.T) {
	assert.Equal(t, KindInfrastructure, KindOf(errors.New("boom")))
	assert.Equal(t, KindValidation, KindOf(Validation("slotDate is required")))
}

func TestActor_Permissions(t *testing.T) {
	appt := &Appointment{PatientID: "p1", DoctorID: "d1"}

	assert.True(t, Actor{ID: "p1", Role: RolePatient}.CanManage(appt))
	assert.False(t, Actor{ID: "p2", Role: RolePatient}.CanManage(appt))
	assert.True(t, Actor{ID: "d1", Role: RoleDoctor}.CanManage(appt))
	assert.False(t, Actor{ID: "d2", Role: RoleDoctor}.CanManage(appt))
	assert.True(t, Actor{ID: "root", Role: RoleAdmin}.CanManage(appt))

	assert.False(t, Actor{ID: "p1", Role: RolePatient}.CanComplete(appt))
	assert.True(t, Actor{ID: "d1", Role: RoleDoctor}.CanComplete(appt))
	assert.True(t, Actor{ID: "root", Role: RoleAdmin}.CanComplete(appt))

	assert.True(t, Actor{ID: "p1", Role: RolePatient}.CanPay(appt))
	assert.False(t, Actor{ID: "p2", Role: RolePatient}.CanPay(appt))
	assert.False(t, Actor{ID: "d1", Role: RoleDoctor}.CanPay(appt))
	assert.True(t, Actor{ID: "root", Role: RoleAdmin}.CanPay(appt))
}
