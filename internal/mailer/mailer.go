package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"memberhub/internal/dto"
)

// Mailer sends the notification mails produced by the worker. Credentials
// come from configuration; the zero value is unusable.
type Mailer struct {
	host     string
	port     string
	from     string
	password string
	log      *zerolog.Logger
}

func New(host, port, from, password string, log *zerolog.Logger) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		from:     from,
		password: password,
		log:      log,
	}
}

// Send picks subject and body by notification kind and delivers the mail.
func (m *Mailer) Send(msg dto.NotificationMessage) error {
	var subject, body string
	switch msg.Kind {
	case dto.NotifyPromoted:
		subject = fmt.Sprintf("Spot available for %s", msg.EventTitle)
		body = fmt.Sprintf(
			"Hi %s,\n\nA spot opened up for %s and your registration moved off the waiting list.\nYou are now registered for the event.",
			msg.MemberName, msg.EventTitle,
		)
	case dto.NotifyOrganiserCancel:
		subject = fmt.Sprintf("Late cancellation for %s", msg.EventTitle)
		body = fmt.Sprintf(
			"Hi,\n\n%s cancelled their registration for %s after the cancellation deadline.",
			msg.MemberName, msg.EventTitle,
		)
	case dto.NotifyCancelConfirmed:
		subject = fmt.Sprintf("Registration cancelled for %s", msg.EventTitle)
		body = fmt.Sprintf(
			"Hi %s,\n\nYour registration for %s has been cancelled.",
			msg.MemberName, msg.EventTitle,
		)
	case dto.NotifyPaymentProcessed:
		subject = "Payment processed"
		body = fmt.Sprintf(
			"Hi %s,\n\nA payment of %.2f has been processed for you.",
			msg.MemberName, msg.Amount,
		)
	default:
		return fmt.Errorf("unknown notification kind: %s", msg.Kind)
	}

	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, msg.Email, subject, body,
	)

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.from, m.password, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{msg.Email}, []byte(raw)); err != nil {
		m.log.Warn().Msgf("failed to send %s mail to %s: %v", msg.Kind, msg.Email, err)
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Msgf("Mail sent to %s (kind: %s)", msg.Email, msg.Kind)
	return nil
}
