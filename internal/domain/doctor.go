package domain

import "time"

type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type Doctor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Image       string       `json:"image"`
	Speciality  string       `json:"speciality"`
	Degree      string       `json:"degree"`
	Experience  string       `json:"experience"`
	About       string       `json:"about"`
	Fees        int64        `json:"fees"`
	Address     Address      `json:"address"`
	Available   bool         `json:"available"`
	SlotsBooked SlotCalendar `json:"slots_booked"`
	CreatedAt   time.Time    `json:"date"`
}

type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// DoctorSnapshot is the display copy stored on an appointment at booking time.
type DoctorSnapshot struct {
	Name       string `json:"name"`
	Image      string `json:"image"`
	Speciality string `json:"speciality"`
	Degree     string `json:"degree"`
	Fees       int64  `json:"fees"`
}

type PatientSnapshot struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (d *Doctor) Snapshot() DoctorSnapshot {
	return DoctorSnapshot{
		Name:       d.Name,
		Image:      d.Image,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		Fees:       d.Fees,
	}
}

func (p *Patient) Snapshot() PatientSnapshot {
	return PatientSnapshot{Name: p.Name, Email: p.Email, Phone: p.Phone}
}
