package email

import (
	"context"
	"fmt"

	"github.com/go-gomail/gomail"
	"github.com/prescripto/booking/config"
	"github.com/prescripto/booking/internal/kafka"
	"github.com/rs/zerolog"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender mails appointment notifications. Without an SMTP host it only logs.
type Sender struct {
	from   string
	dialer dialer
	log    zerolog.Logger
}

func NewSender(cfg config.SMTPConfig, log zerolog.Logger) *Sender {
	s := &Sender{from: cfg.From, log: log.With().Str("component", "email").Logger()}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	if s.from == "" {
		s.from = cfg.Username
	}
	return s
}

func (s *Sender) Send(ctx context.Context, event kafka.AppointmentEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.PatientEmail == "" {
		s.log.Warn().Str("appointment_id", event.AppointmentID).Msg("no recipient for notification")
		return nil
	}

	subject, body := compose(event)
	if s.dialer == nil {
		s.log.Info().Str("to", event.PatientEmail).Str("subject", subject).Msg("smtp disabled, notification logged")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", event.PatientEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	s.log.Info().Str("to", event.PatientEmail).Str("type", event.Type).Msg("notification sent")
	return nil
}

func compose(event kafka.AppointmentEvent) (subject, body string) {
	when := fmt.Sprintf("%s at %s", event.SlotDate, event.SlotTime)
	switch event.Type {
	case kafka.EventAppointmentBooked:
		subject = "Appointment booked"
		body = fmt.Sprintf("Hello %s,\n\nyour appointment with %s on %s is booked. Fee: %d.", event.PatientName, event.DoctorName, when, event.Amount)
	case kafka.EventAppointmentCancelled:
		subject = "Appointment cancelled"
		body = fmt.Sprintf("Hello %s,\n\nyour appointment with %s on %s has been cancelled.", event.PatientName, event.DoctorName, when)
	case kafka.EventAppointmentCompleted:
		subject = "Appointment completed"
		body = fmt.Sprintf("Hello %s,\n\nyour appointment with %s on %s is marked completed.", event.PatientName, event.DoctorName, when)
	case kafka.EventAppointmentPaid:
		subject = "Payment received"
		body = fmt.Sprintf("Hello %s,\n\nwe received %d for your appointment with %s on %s.", event.PatientName, event.Amount, event.DoctorName, when)
	default:
		subject = "Appointment update"
		body = fmt.Sprintf("Hello %s,\n\nyour appointment with %s on %s was updated (%s).", event.PatientName, event.DoctorName, when, event.Type)
	}
	return subject, body
}
