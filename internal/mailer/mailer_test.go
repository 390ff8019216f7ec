package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regportal/internal/dto"
)

func testRegistration() dto.RegistrationSubmittedMessage {
	return dto.RegistrationSubmittedMessage{
		RegistrationID: uuid.MustParse("6f1c2d9e-8a41-4f7b-9c55-2b8f0f4e6a11"),
		TrainingID:     uuid.New(),
		TrainingName:   "Go Basics",
		FullName:       "Budi Santoso",
		NIM:            "2201001",
		ClassOption:    "B",
		PhoneNumber:    "081234567890",
		SubmittedAt:    time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestComposeRegistrationMessage(t *testing.T) {
	msg := string(ComposeRegistrationMessage("portal@example.com", []string{"a@example.com", "b@example.com"}, testRegistration()))

	assert.True(t, strings.HasPrefix(msg, "From: portal@example.com\r\n"))
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: New registration: Go Basics\r\n")
	assert.Contains(t, msg, "Budi Santoso")
	assert.Contains(t, msg, "2025-03-01 09:30:00 UTC")
	assert.Contains(t, msg, "6f1c2d9e-8a41-4f7b-9c55-2b8f0f4e6a11")
}

func TestNotifyRegistration(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{
		Addr:     "smtp.example.com:587",
		Host:     "smtp.example.com",
		Username: "portal",
		Password: "secret",
		From:     "portal@example.com",
		AdminTo:  []string{"admin@example.com"},
	}, &log)

	var gotAddr string
	var gotTo []string
	var gotAuth smtp.Auth
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotAuth = addr, to, a
		return nil
	}

	require.NoError(t, m.NotifyRegistration(t.Context(), testRegistration()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"admin@example.com"}, gotTo)
	assert.NotNil(t, gotAuth)

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") }
	assert.Error(t, m.NotifyRegistration(t.Context(), testRegistration()))
}

func TestNotifyRegistration_Disabled(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{Host: "smtp.example.com"}, &log)
	assert.False(t, m.Enabled())
	assert.ErrorIs(t, m.NotifyRegistration(context.Background(), testRegistration()), ErrNoRecipients)
}
