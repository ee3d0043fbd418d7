package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prescripto/booking/internal/domain"
)

type PGPatientRepository struct {
	db *pgxpool.Pool
}

func NewPatientRepository(db *pgxpool.Pool) PatientRepository {
	return &PGPatientRepository{db: db}
}

func (r *PGPatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO users (id, name, email, phone) VALUES ($1, $2, $3, $4)`,
		patient.ID, patient.Name, patient.Email, patient.Phone)
	return err
}

func (r *PGPatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	var p domain.Patient
	err := r.db.QueryRow(ctx, `SELECT id, name, email, phone FROM users WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGPatientRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

var _ PatientRepository = (*PGPatientRepository)(nil)
