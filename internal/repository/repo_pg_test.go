package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewDoctorRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewDoctorRepository(pool)
	assert.NotNil(t, repo)
}

func TestNewPatientRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewPatientRepository(pool)
	assert.NotNil(t, repo)
}

func TestNewAppointmentRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewAppointmentRepository(pool)
	assert.NotNil(t, repo)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(errors.Join(errors.New("insert"), &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestPGSchemaGuardsActiveSlot(t *testing.T) {
	assert.Contains(t, pgSchema, "appointments_active_slot_idx")
	assert.Contains(t, pgSchema, "WHERE status = 'pending'")
}
