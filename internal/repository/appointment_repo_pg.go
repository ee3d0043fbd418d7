package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prescripto/booking/internal/domain"
)

const appointmentColumns = `id, user_id, doc_id, slot_date, slot_time, amount, status, payment_status, user_data, doc_data, cancelled_at, completed_at, created_at, updated_at`

type PGAppointmentRepository struct {
	db *pgxpool.Pool
}

func NewAppointmentRepository(db *pgxpool.Pool) AppointmentRepository {
	return &PGAppointmentRepository{db: db}
}

func (r *PGAppointmentRepository) CreateBooked(ctx context.Context, appt *domain.Appointment) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := occupyPGSlot(ctx, tx, appt.SlotKey()); err != nil {
		return err
	}

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if _, err := tx.Exec(ctx, `INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		appt.ID, appt.PatientID, appt.DoctorID, appt.SlotDate, appt.SlotTime, appt.Amount, appt.Status,
		appt.PaymentStatus, appt.Patient, appt.Doctor, appt.CancelledAt, appt.CompletedAt, appt.CreatedAt, appt.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotAlreadyBooked
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGAppointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAppointmentNotFound
	}
	return a, err
}

func (r *PGAppointmentRepository) Transition(ctx context.Context, id string, t Transition) (*domain.Appointment, error) {
	var column string
	switch t.To {
	case domain.AppointmentStatusCancelled:
		column = "cancelled_at"
	case domain.AppointmentStatusCompleted:
		column = "completed_at"
	default:
		return nil, fmt.Errorf("unsupported transition to %q", t.To)
	}

	a, err := scanAppointment(r.db.QueryRow(ctx, `UPDATE appointments
		SET status=$2, `+column+`=$3, updated_at=$3, amount = CASE WHEN $4::bigint > 0 THEN $4::bigint ELSE amount END
		WHERE id=$1 AND status=$5
		RETURNING `+appointmentColumns,
		id, t.To, t.At, t.FillAmount, domain.AppointmentStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStateChanged
	}
	return a, err
}

func (r *PGAppointmentRepository) SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `UPDATE appointments SET payment_status=$2, updated_at=now()
		WHERE id=$1 AND status<>$3
		RETURNING `+appointmentColumns, id, status, domain.AppointmentStatusCancelled))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStateChanged
	}
	return a, err
}

func (r *PGAppointmentRepository) HasActive(ctx context.Context, key domain.SlotKey) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM appointments WHERE doc_id=$1 AND slot_date=$2 AND slot_time=$3 AND status=$4)`,
		key.DoctorID, key.Date, key.Time, domain.AppointmentStatusPending).Scan(&exists)
	return exists, err
}

func (r *PGAppointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PatientID != "" {
		args = append(args, filter.PatientID)
		conds = append(conds, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.DoctorID != "" {
		args = append(args, filter.DoctorID)
		conds = append(conds, fmt.Sprintf("doc_id=$%d", len(args)))
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := make([]domain.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *a)
	}
	return appointments, rows.Err()
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SlotDate, &a.SlotTime, &a.Amount, &a.Status,
		&a.PaymentStatus, &a.Patient, &a.Doctor, &a.CancelledAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ AppointmentRepository = (*PGAppointmentRepository)(nil)
