package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names follow the existing mongoose models (doctor, appointment, user).
const (
	doctorsCollection      = "doctors"
	appointmentsCollection = "appointments"
	patientsCollection     = "users"
)

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureMongoIndexes creates the lookup index used by the reconciliation sweep
// and the per-actor listings.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(appointmentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "docId", Value: 1}, {Key: "slotDate", Value: 1}, {Key: "slotTime", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create appointment indexes: %w", err)
	}
	return nil
}

// objectID parses a hex id. Malformed ids can never match a stored document.
func objectID(id string) (bson.ObjectID, bool) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, false
	}
	return oid, true
}

func slotPath(date string) string {
	return "slots_booked." + date
}

type mongoDoctor struct {
	ID          bson.ObjectID       `bson:"_id,omitempty"`
	Name        string              `bson:"name"`
	Email       string              `bson:"email"`
	Image       string              `bson:"image"`
	Speciality  string              `bson:"speciality"`
	Degree      string              `bson:"degree"`
	Experience  string              `bson:"experience"`
	About       string              `bson:"about"`
	Fees        int64               `bson:"fees"`
	Address     domain.Address      `bson:"address"`
	Available   bool                `bson:"available"`
	SlotsBooked map[string][]string `bson:"slots_booked"`
	Date        time.Time           `bson:"date"`
}

func (d *mongoDoctor) toDomain() domain.Doctor {
	slots := domain.SlotCalendar(d.SlotsBooked)
	if slots == nil {
		slots = domain.SlotCalendar{}
	}
	return domain.Doctor{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Email:       d.Email,
		Image:       d.Image,
		Speciality:  d.Speciality,
		Degree:      d.Degree,
		Experience:  d.Experience,
		About:       d.About,
		Fees:        d.Fees,
		Address:     d.Address,
		Available:   d.Available,
		SlotsBooked: slots,
		CreatedAt:   d.Date,
	}
}

type mongoPatient struct {
	ID    bson.ObjectID `bson:"_id,omitempty"`
	Name  string        `bson:"name"`
	Email string        `bson:"email"`
	Phone string        `bson:"phone"`
}

// mongoAppointment keeps the cancelled/isCompleted pair of the stored documents;
// the domain status is derived from it.
type mongoAppointment struct {
	ID            bson.ObjectID          `bson:"_id,omitempty"`
	UserID        bson.ObjectID          `bson:"userId"`
	DocID         bson.ObjectID          `bson:"docId"`
	SlotDate      string                 `bson:"slotDate"`
	SlotTime      string                 `bson:"slotTime"`
	Amount        int64                  `bson:"amount"`
	Cancelled     bool                   `bson:"cancelled"`
	IsCompleted   bool                   `bson:"isCompleted"`
	PaymentStatus string                 `bson:"paymentStatus"`
	UserData      domain.PatientSnapshot `bson:"userData"`
	DocData       domain.DoctorSnapshot  `bson:"docData"`
	Date          time.Time              `bson:"date"`
	CancelledAt   *time.Time             `bson:"cancelledAt,omitempty"`
	CompletedAt   *time.Time             `bson:"completedAt,omitempty"`
	CreatedAt     time.Time              `bson:"createdAt"`
	UpdatedAt     time.Time              `bson:"updatedAt"`
}

func newMongoAppointment(a *domain.Appointment, userID, docID bson.ObjectID) mongoAppointment {
	return mongoAppointment{
		UserID:        userID,
		DocID:         docID,
		SlotDate:      a.SlotDate,
		SlotTime:      a.SlotTime,
		Amount:        a.Amount,
		Cancelled:     a.Status == domain.AppointmentStatusCancelled,
		IsCompleted:   a.Status == domain.AppointmentStatusCompleted,
		PaymentStatus: string(a.PaymentStatus),
		UserData:      a.Patient,
		DocData:       a.Doctor,
		Date:          a.CreatedAt,
		CancelledAt:   a.CancelledAt,
		CompletedAt:   a.CompletedAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (m *mongoAppointment) toDomain() domain.Appointment {
	status := domain.AppointmentStatusPending
	switch {
	case m.Cancelled:
		status = domain.AppointmentStatusCancelled
	case m.IsCompleted:
		status = domain.AppointmentStatusCompleted
	}
	payment := domain.PaymentStatus(m.PaymentStatus)
	if !payment.Valid() {
		payment = domain.PaymentStatusPending
	}
	return domain.Appointment{
		ID:            m.ID.Hex(),
		PatientID:     m.UserID.Hex(),
		DoctorID:      m.DocID.Hex(),
		SlotDate:      m.SlotDate,
		SlotTime:      m.SlotTime,
		Amount:        m.Amount,
		Status:        status,
		PaymentStatus: payment,
		Patient:       m.UserData,
		Doctor:        m.DocData,
		CancelledAt:   m.CancelledAt,
		CompletedAt:   m.CompletedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// pendingFilter matches appointments in neither terminal state.
func pendingFilter(id bson.ObjectID) bson.M {
	return bson.M{"_id": id, "cancelled": false, "isCompleted": bson.M{"$ne": true}}
}
