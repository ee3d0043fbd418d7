package repository

import (
	"testing"
	"time"

	"github.com/prescripto/booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestNewMongoRepositories(t *testing.T) {
	// Connect does not dial until the first operation.
	client, err := mongo.Connect(options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	db := client.Database("prescripto_test")

	assert.NotNil(t, NewDoctorRepositoryMongo(db))
	assert.NotNil(t, NewPatientRepositoryMongo(db))
	assert.NotNil(t, NewAppointmentRepositoryMongo(db))
}

func TestObjectID(t *testing.T) {
	oid := bson.NewObjectID()

	got, ok := objectID(oid.Hex())
	assert.True(t, ok)
	assert.Equal(t, oid, got)

	_, ok = objectID("not-an-id")
	assert.False(t, ok)
}

func TestSlotPath(t *testing.T) {
	assert.Equal(t, "slots_booked.15_3_2025", slotPath("15_3_2025"))
}

func TestMongoAppointmentStatusMapping(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		doc     mongoAppointment
		status  domain.AppointmentStatus
		payment domain.PaymentStatus
	}{
		{name: "pending", doc: mongoAppointment{PaymentStatus: "paid"}, status: domain.AppointmentStatusPending, payment: domain.PaymentStatusPaid},
		{name: "cancelled", doc: mongoAppointment{Cancelled: true, CancelledAt: &now}, status: domain.AppointmentStatusCancelled, payment: domain.PaymentStatusPending},
		{name: "completed", doc: mongoAppointment{IsCompleted: true, PaymentStatus: "completed"}, status: domain.AppointmentStatusCompleted, payment: domain.PaymentStatusCompleted},
		{name: "unknown payment status", doc: mongoAppointment{PaymentStatus: "weird"}, status: domain.AppointmentStatusPending, payment: domain.PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.doc.toDomain()
			assert.Equal(t, tt.status, a.Status)
			assert.Equal(t, tt.payment, a.PaymentStatus)
		})
	}
}

func TestNewMongoAppointmentKeepsFlags(t *testing.T) {
	userID, docID := bson.NewObjectID(), bson.NewObjectID()
	appt := &domain.Appointment{
		SlotDate:      "15_3_2025",
		SlotTime:      "10:30 AM",
		Amount:        500,
		Status:        domain.AppointmentStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Doctor:        domain.DoctorSnapshot{Name: "Dr. Rao", Fees: 500},
	}

	doc := newMongoAppointment(appt, userID, docID)
	assert.False(t, doc.Cancelled)
	assert.False(t, doc.IsCompleted)
	assert.Equal(t, docID, doc.DocID)
	assert.Equal(t, userID, doc.UserID)

	back := doc.toDomain()
	assert.Equal(t, docID.Hex(), back.DoctorID)
	assert.Equal(t, userID.Hex(), back.PatientID)
	assert.Equal(t, int64(500), back.Amount)
	assert.Equal(t, "Dr. Rao", back.Doctor.Name)
}

func TestPendingFilter(t *testing.T) {
	oid := bson.NewObjectID()
	f := pendingFilter(oid)
	assert.Equal(t, oid, f["_id"])
	assert.Equal(t, false, f["cancelled"])
	assert.Equal(t, bson.M{"$ne": true}, f["isCompleted"])
}

func TestMongoDoctorToDomainNilCalendar(t *testing.T) {
	d := (&mongoDoctor{ID: bson.NewObjectID(), Name: "Dr. Rao"}).toDomain()
	assert.NotNil(t, d.SlotsBooked)
	assert.Equal(t, 0, d.SlotsBooked.Count())
}

func TestProfileSet(t *testing.T) {
	fees := int64(600)
	available := true
	addr := domain.Address{Line1: "12 MG Road"}

	assert.Empty(t, profileSet(ProfileUpdate{}))
	assert.Equal(t, bson.M{"fees": int64(600), "available": true, "address": addr},
		profileSet(ProfileUpdate{Fees: &fees, Available: &available, Address: &addr}))
}
