package repository

import (
	"context"
	"errors"

	"github.com/prescripto/booking/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type MongoPatientRepository struct {
	users *mongo.Collection
}

func NewPatientRepositoryMongo(db *mongo.Database) PatientRepository {
	return &MongoPatientRepository{users: db.Collection(patientsCollection)}
}

func (r *MongoPatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	res, err := r.users.InsertOne(ctx, mongoPatient{Name: patient.Name, Email: patient.Email, Phone: patient.Phone})
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		patient.ID = oid.Hex()
	}
	return nil
}

func (r *MongoPatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrPatientNotFound
	}
	var doc mongoPatient
	if err := r.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, err
	}
	return &domain.Patient{ID: doc.ID.Hex(), Name: doc.Name, Email: doc.Email, Phone: doc.Phone}, nil
}

func (r *MongoPatientRepository) Count(ctx context.Context) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{})
}

var _ PatientRepository = (*MongoPatientRepository)(nil)
