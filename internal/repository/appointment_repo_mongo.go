package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/prescripto/booking/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoAppointmentRepository works without multi-document transactions: the
// slot is claimed first with a conditional update on the doctor document and
// released again if the appointment insert fails.
type MongoAppointmentRepository struct {
	appointments *mongo.Collection
	doctors      *mongo.Collection
}

func NewAppointmentRepositoryMongo(db *mongo.Database) AppointmentRepository {
	return &MongoAppointmentRepository{
		appointments: db.Collection(appointmentsCollection),
		doctors:      db.Collection(doctorsCollection),
	}
}

func (r *MongoAppointmentRepository) CreateBooked(ctx context.Context, appt *domain.Appointment) error {
	docID, ok := objectID(appt.DoctorID)
	if !ok {
		return domain.ErrDoctorNotFound
	}
	userID, ok := objectID(appt.PatientID)
	if !ok {
		return domain.ErrPatientNotFound
	}

	if err := occupyMongoSlot(ctx, r.doctors, docID, appt.SlotDate, appt.SlotTime); err != nil {
		return err
	}

	res, err := r.appointments.InsertOne(ctx, newMongoAppointment(appt, userID, docID))
	if err != nil {
		if _, relErr := releaseMongoSlot(context.WithoutCancel(ctx), r.doctors, docID, appt.SlotDate, appt.SlotTime); relErr != nil {
			return fmt.Errorf("insert appointment: %w (slot release failed: %v)", err, relErr)
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		appt.ID = oid.Hex()
	}
	return nil
}

func (r *MongoAppointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrAppointmentNotFound
	}
	var doc mongoAppointment
	if err := r.appointments.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAppointmentNotFound
		}
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

func (r *MongoAppointmentRepository) Transition(ctx context.Context, id string, t Transition) (*domain.Appointment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrStateChanged
	}

	set := bson.M{"updatedAt": t.At}
	switch t.To {
	case domain.AppointmentStatusCancelled:
		set["cancelled"] = true
		set["cancelledAt"] = t.At
	case domain.AppointmentStatusCompleted:
		set["isCompleted"] = true
		set["completedAt"] = t.At
	default:
		return nil, fmt.Errorf("unsupported transition to %q", t.To)
	}
	if t.FillAmount > 0 {
		set["amount"] = t.FillAmount
	}

	var doc mongoAppointment
	err := r.appointments.FindOneAndUpdate(ctx, pendingFilter(oid), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStateChanged
		}
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

func (r *MongoAppointmentRepository) SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) (*domain.Appointment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrStateChanged
	}
	var doc mongoAppointment
	err := r.appointments.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "cancelled": false},
		bson.M{"$set": bson.M{"paymentStatus": string(status)}, "$currentDate": bson.M{"updatedAt": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStateChanged
		}
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

func (r *MongoAppointmentRepository) HasActive(ctx context.Context, key domain.SlotKey) (bool, error) {
	docID, ok := objectID(key.DoctorID)
	if !ok {
		return false, nil
	}
	n, err := r.appointments.CountDocuments(ctx, bson.M{
		"docId":       docID,
		"slotDate":    key.Date,
		"slotTime":    key.Time,
		"cancelled":   false,
		"isCompleted": bson.M{"$ne": true},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoAppointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error) {
	query := bson.M{}
	if filter.PatientID != "" {
		oid, ok := objectID(filter.PatientID)
		if !ok {
			return []domain.Appointment{}, nil
		}
		query["userId"] = oid
	}
	if filter.DoctorID != "" {
		oid, ok := objectID(filter.DoctorID)
		if !ok {
			return []domain.Appointment{}, nil
		}
		query["docId"] = oid
	}

	cursor, err := r.appointments.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoAppointment
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

var _ AppointmentRepository = (*MongoAppointmentRepository)(nil)
