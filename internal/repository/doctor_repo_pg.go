package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prescripto/booking/internal/domain"
)

const doctorColumns = `id, name, email, image, speciality, degree, experience, about, fees, address, available, slots_booked, created_at`

type PGDoctorRepository struct {
	db *pgxpool.Pool
}

func NewDoctorRepository(db *pgxpool.Pool) DoctorRepository {
	return &PGDoctorRepository{db: db}
}

func (r *PGDoctorRepository) Create(ctx context.Context, doctor *domain.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = uuid.NewString()
	}
	if doctor.CreatedAt.IsZero() {
		doctor.CreatedAt = time.Now()
	}
	if doctor.SlotsBooked == nil {
		doctor.SlotsBooked = domain.SlotCalendar{}
	}
	_, err := r.db.Exec(ctx, `INSERT INTO doctors (`+doctorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		doctor.ID, doctor.Name, doctor.Email, doctor.Image, doctor.Speciality, doctor.Degree, doctor.Experience,
		doctor.About, doctor.Fees, doctor.Address, doctor.Available, doctor.SlotsBooked, doctor.CreatedAt)
	return err
}

func (r *PGDoctorRepository) List(ctx context.Context) ([]domain.Doctor, error) {
	rows, err := r.db.Query(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doctors := make([]domain.Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, *d)
	}
	return doctors, rows.Err()
}

func (r *PGDoctorRepository) GetByID(ctx context.Context, id string) (*domain.Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDoctorNotFound
	}
	return d, err
}

func (r *PGDoctorRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	res, err := r.db.Exec(ctx, `UPDATE doctors SET available=$2 WHERE id=$1`, id, available)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrDoctorNotFound
	}
	return nil
}

func (r *PGDoctorRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.Doctor, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, `
		UPDATE doctors
		SET fees = COALESCE($2::bigint, fees),
		    address = COALESCE($3::jsonb, address),
		    available = COALESCE($4::boolean, available)
		WHERE id = $1
		RETURNING `+doctorColumns,
		id, update.Fees, update.Address, update.Available))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDoctorNotFound
	}
	return d, err
}

func (r *PGDoctorRepository) ReleaseSlot(ctx context.Context, key domain.SlotKey) (bool, error) {
	res, err := r.db.Exec(ctx, releaseSlotSQL, key.DoctorID, key.Date, key.Time)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// occupySlotSQL appends $3 to the $2 list only while the doctor is available and the
// time is not already held.
const occupySlotSQL = `
UPDATE doctors
SET slots_booked = jsonb_set(slots_booked, ARRAY[$2::text], COALESCE(slots_booked->$2::text, '[]'::jsonb) || to_jsonb($3::text))
WHERE id = $1 AND available AND NOT COALESCE((slots_booked->$2::text) ? $3::text, false)`

// releaseSlotSQL removes $3 from the $2 list and drops the date key when the list empties.
const releaseSlotSQL = `
UPDATE doctors
SET slots_booked = CASE
    WHEN jsonb_array_length((slots_booked->$2::text) - $3::text) = 0 THEN slots_booked - $2::text
    ELSE jsonb_set(slots_booked, ARRAY[$2::text], (slots_booked->$2::text) - $3::text)
END
WHERE id = $1 AND COALESCE((slots_booked->$2::text) ? $3::text, false)`

func occupyPGSlot(ctx context.Context, tx pgx.Tx, key domain.SlotKey) error {
	res, err := tx.Exec(ctx, occupySlotSQL, key.DoctorID, key.Date, key.Time)
	if err != nil {
		return err
	}
	if res.RowsAffected() > 0 {
		return nil
	}

	var available bool
	if err := tx.QueryRow(ctx, `SELECT available FROM doctors WHERE id=$1`, key.DoctorID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrDoctorNotFound
		}
		return err
	}
	if !available {
		return domain.ErrDoctorUnavailable
	}
	return domain.ErrSlotAlreadyBooked
}

func scanDoctor(row pgx.Row) (*domain.Doctor, error) {
	var d domain.Doctor
	if err := row.Scan(&d.ID, &d.Name, &d.Email, &d.Image, &d.Speciality, &d.Degree, &d.Experience, &d.About,
		&d.Fees, &d.Address, &d.Available, &d.SlotsBooked, &d.CreatedAt); err != nil {
		return nil, err
	}
	if d.SlotsBooked == nil {
		d.SlotsBooked = domain.SlotCalendar{}
	}
	return &d, nil
}

var _ DoctorRepository = (*PGDoctorRepository)(nil)
