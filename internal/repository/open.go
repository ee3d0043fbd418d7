package repository

import (
	"context"
	"fmt"

	"github.com/prescripto/booking/config"
)

// Stores bundles the three repositories of one backend.
type Stores struct {
	Doctors      DoctorRepository
	Patients     PatientRepository
	Appointments AppointmentRepository
	// AtomicBooking is false when CreateBooked occupies the slot and inserts
	// the appointment in separate writes. Reconciliation then needs a shared
	// slot lock to run safely.
	AtomicBooking bool

	close func(context.Context) error
}

// Open connects the backend selected by cfg.Driver and prepares its indexes or schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Name)
		if err := EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &Stores{
			Doctors:      NewDoctorRepositoryMongo(db),
			Patients:     NewPatientRepositoryMongo(db),
			Appointments: NewAppointmentRepositoryMongo(db),
			close:        client.Disconnect,
		}, nil

	case config.DriverPostgres:
		pool, err := ConnectPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		if err := MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Doctors:       NewDoctorRepository(pool),
			Patients:      NewPatientRepository(pool),
			Appointments:  NewAppointmentRepository(pool),
			AtomicBooking: true,
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMemory:
		store := NewMemoryStore()
		return &Stores{
			Doctors:       store.Doctors(),
			Patients:      store.Patients(),
			Appointments:  store.Appointments(),
			AtomicBooking: true,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func (s *Stores) Close(ctx context.Context) error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close(ctx)
}
