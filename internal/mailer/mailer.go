package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"regportal/internal/dto"
)

var ErrNoRecipients = errors.New("no admin recipients configured")

type Config struct {
	Addr     string
	Host     string
	Username string
	Password string
	From     string
	AdminTo  []string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer notifies administrators about new registrations.
type Mailer struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
}

func New(cfg Config, log *zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log, send: smtp.SendMail}
}

// Enabled reports whether there is a server and someone to write to.
func (m *Mailer) Enabled() bool {
	return m != nil && m.cfg.Host != "" && len(m.cfg.AdminTo) > 0
}

func (m *Mailer) NotifyRegistration(ctx context.Context, reg dto.RegistrationSubmittedMessage) error {
	if !m.Enabled() {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := ComposeRegistrationMessage(m.cfg.From, m.cfg.AdminTo, reg)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.send(m.cfg.Addr, auth, m.cfg.From, m.cfg.AdminTo, msg); err != nil {
		m.log.Warn().Err(err).Str("registration_id", reg.RegistrationID.String()).Msg("failed to send admin notification")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().
		Str("registration_id", reg.RegistrationID.String()).
		Int("recipients", len(m.cfg.AdminTo)).
		Msg("admin notified about new registration")
	return nil
}

func ComposeRegistrationMessage(from string, to []string, reg dto.RegistrationSubmittedMessage) []byte {
	training := reg.TrainingName
	if training == "" {
		training = reg.TrainingID.String()
	}

	subject := fmt.Sprintf("New registration: %s", training)

	var body strings.Builder
	fmt.Fprintf(&body, "A new registration is waiting for review.\r\n\r\n")
	fmt.Fprintf(&body, "Training:     %s\r\n", training)
	fmt.Fprintf(&body, "Name:         %s\r\n", reg.FullName)
	fmt.Fprintf(&body, "NIM:          %s\r\n", reg.NIM)
	fmt.Fprintf(&body, "Class:        %s\r\n", reg.ClassOption)
	fmt.Fprintf(&body, "Phone:        %s\r\n", reg.PhoneNumber)
	fmt.Fprintf(&body, "Submitted at: %s\r\n", reg.SubmittedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&body, "Registration: %s\r\n", reg.RegistrationID)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, strings.Join(to, ", "), subject, body.String(),
	)
	return []byte(msg)
}
