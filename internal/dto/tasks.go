package dto

import (
	"time"

	"github.com/google/uuid"
)

// Task kinds carried on the background queue.
const (
	TaskObjectCleanup         = "object.cleanup"
	TaskRegistrationSubmitted = "registration.submitted"
)

type TaskMessage struct {
	Kind         string                        `json:"kind"`
	Cleanup      *ObjectCleanupMessage         `json:"cleanup,omitempty"`
	Registration *RegistrationSubmittedMessage `json:"registration,omitempty"`
}

// ObjectCleanupMessage asks the worker to delete stored files that no row
// references any more.
type ObjectCleanupMessage struct {
	Bucket  string   `json:"bucket"`
	Objects []string `json:"objects"`
	Reason  string   `json:"reason"`
}

type RegistrationSubmittedMessage struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	TrainingID     uuid.UUID `json:"training_id"`
	TrainingName   string    `json:"training_name"`
	FullName       string    `json:"full_name"`
	NIM            string    `json:"nim"`
	ClassOption    string    `json:"class_option"`
	PhoneNumber    string    `json:"phone_number"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
