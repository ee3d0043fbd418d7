package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoDoctorRepository struct {
	doctors *mongo.Collection
}

func NewDoctorRepositoryMongo(db *mongo.Database) DoctorRepository {
	return &MongoDoctorRepository{doctors: db.Collection(doctorsCollection)}
}

func (r *MongoDoctorRepository) Create(ctx context.Context, doctor *domain.Doctor) error {
	if doctor.CreatedAt.IsZero() {
		doctor.CreatedAt = time.Now()
	}
	slots := map[string][]string(doctor.SlotsBooked)
	if slots == nil {
		slots = map[string][]string{}
	}
	doc := mongoDoctor{
		Name:        doctor.Name,
		Email:       doctor.Email,
		Image:       doctor.Image,
		Speciality:  doctor.Speciality,
		Degree:      doctor.Degree,
		Experience:  doctor.Experience,
		About:       doctor.About,
		Fees:        doctor.Fees,
		Address:     doctor.Address,
		Available:   doctor.Available,
		SlotsBooked: slots,
		Date:        doctor.CreatedAt,
	}
	res, err := r.doctors.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		doctor.ID = oid.Hex()
	}
	return nil
}

func (r *MongoDoctorRepository) List(ctx context.Context) ([]domain.Doctor, error) {
	cursor, err := r.doctors.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoDoctor
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	doctors := make([]domain.Doctor, 0, len(docs))
	for i := range docs {
		doctors = append(doctors, docs[i].toDomain())
	}
	return doctors, nil
}

func (r *MongoDoctorRepository) GetByID(ctx context.Context, id string) (*domain.Doctor, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrDoctorNotFound
	}
	var doc mongoDoctor
	if err := r.doctors.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDoctorNotFound
		}
		return nil, err
	}
	d := doc.toDomain()
	return &d, nil
}

func (r *MongoDoctorRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrDoctorNotFound
	}
	res, err := r.doctors.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"available": available}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDoctorNotFound
	}
	return nil
}

func (r *MongoDoctorRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*domain.Doctor, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrDoctorNotFound
	}
	set := profileSet(update)
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	var doc mongoDoctor
	err := r.doctors.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDoctorNotFound
		}
		return nil, err
	}
	d := doc.toDomain()
	return &d, nil
}

func profileSet(update ProfileUpdate) bson.M {
	set := bson.M{}
	if update.Fees != nil {
		set["fees"] = *update.Fees
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}
	if update.Available != nil {
		set["available"] = *update.Available
	}
	return set
}

func (r *MongoDoctorRepository) ReleaseSlot(ctx context.Context, key domain.SlotKey) (bool, error) {
	oid, ok := objectID(key.DoctorID)
	if !ok {
		return false, domain.ErrDoctorNotFound
	}
	return releaseMongoSlot(ctx, r.doctors, oid, key.Date, key.Time)
}

// occupyMongoSlot pushes slotTime onto the date list only if the doctor is available
// and the time is not already present, in a single document update.
func occupyMongoSlot(ctx context.Context, doctors *mongo.Collection, oid bson.ObjectID, date, slotTime string) error {
	path := slotPath(date)
	res, err := doctors.UpdateOne(ctx,
		bson.M{"_id": oid, "available": true, path: bson.M{"$ne": slotTime}},
		bson.M{"$push": bson.M{path: slotTime}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	var doc mongoDoctor
	if err := doctors.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrDoctorNotFound
		}
		return err
	}
	if !doc.Available {
		return domain.ErrDoctorUnavailable
	}
	return domain.ErrSlotAlreadyBooked
}

func releaseMongoSlot(ctx context.Context, doctors *mongo.Collection, oid bson.ObjectID, date, slotTime string) (bool, error) {
	path := slotPath(date)
	res, err := doctors.UpdateOne(ctx,
		bson.M{"_id": oid, path: slotTime},
		bson.M{"$pull": bson.M{path: slotTime}},
	)
	if err != nil {
		return false, err
	}
	if _, err := doctors.UpdateOne(ctx,
		bson.M{"_id": oid, path: bson.M{"$size": 0}},
		bson.M{"$unset": bson.M{path: ""}},
	); err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

var _ DoctorRepository = (*MongoDoctorRepository)(nil)
