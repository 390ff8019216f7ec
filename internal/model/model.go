package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	RoleAdmin = "admin"
)

var (
	ClassOptions       = []string{"A", "B", "C"}
	RegistrationStatus = []string{StatusPending, StatusApproved, StatusRejected}
)

type Training struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate Date      `db:"start_date" json:"start_date"`
	EndDate   Date      `db:"end_date" json:"end_date"`
	Quota     int       `db:"quota" json:"quota"`
	Material  *string   `db:"material" json:"material"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Registration struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	TrainingID              uuid.UUID  `db:"training_id" json:"training_id"`
	FullName                string     `db:"full_name" json:"full_name"`
	NIM                     string     `db:"nim" json:"nim"`
	ClassOption             string     `db:"class_option" json:"class_option"`
	PhoneNumber             string     `db:"phone_number" json:"phone_number"`
	PaymentProofURL         *string    `db:"payment_proof_url" json:"payment_proof_url"`
	SelectedPaymentMethodID *uuid.UUID `db:"selected_payment_method_id" json:"selected_payment_method_id"`
	Status                  string     `db:"status" json:"status"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail is a registration joined with the names of the training
// and payment method it references. The joined columns are nil when the
// referenced row no longer exists.
type RegistrationDetail struct {
	Registration
	TrainingName      *string
	TrainingQuota     *int
	PaymentMethodName *string
}

type PaymentMethod struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MethodName   string    `db:"method_name" json:"method_name"`
	AccountInfo  *string   `db:"account_info" json:"account_info"`
	QRISImageURL *string   `db:"qris_image_url" json:"qris_image_url"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
}

// RegistrationFilter narrows a registration listing. Nil fields match everything.
type RegistrationFilter struct {
	Status     *string
	TrainingID *uuid.UUID
}
