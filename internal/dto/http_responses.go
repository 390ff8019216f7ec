package dto

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"regportal/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	FieldsMissing      = "FIELDS_MISSING"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Internal server error."

	TrainingNotFound      = "TRAINING_NOT_FOUND"
	TrainingFull          = "TRAINING_FULL"
	RegistrationNotFound  = "REGISTRATION_NOT_FOUND"
	PaymentMethodNotFound = "PAYMENT_METHOD_NOT_FOUND"

	InvalidCredentials = "INVALID_CREDENTIALS"
	Forbidden          = "FORBIDDEN"
	Unauthenticated    = "UNAUTHENTICATED"
	TooManyAttempts    = "TOO_MANY_ATTEMPTS"
)

type Response struct {
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type IDRequest struct {
	ID string `json:"id" validate:"required"`
}

type TrainingRequest struct {
	ID        string     `json:"id"`
	Name      string     `json:"name" validate:"required,max=255"`
	StartDate model.Date `json:"start_date"`
	EndDate   model.Date `json:"end_date"`
	Quota     int        `json:"quota" validate:"gte=0"`
	Material  *string    `json:"material"`
}

type TrainingResponse struct {
	model.Training
	RegisteredCount int `json:"registered_count"`
}

type SubmitRegistrationRequest struct {
	FullName                string `form:"fullName" validate:"required,max=255"`
	NIM                     string `form:"nim" validate:"required,max=64"`
	ClassOption             string `form:"classOption" validate:"required,classoption"`
	PhoneNumber             string `form:"phoneNumber" validate:"required,max=32"`
	TrainingID              string `form:"trainingId" validate:"required"`
	SelectedPaymentMethodID string `form:"selectedPaymentMethodId" validate:"required"`
}

type RegistrationTraining struct {
	ID              uuid.UUID `json:"id"`
	Name            *string   `json:"name"`
	Quota           *int      `json:"quota"`
	RegisteredCount int       `json:"registered_count"`
}

type RegistrationResponse struct {
	model.Registration
	TrainingName      *string              `json:"training_name"`
	PaymentMethodName *string              `json:"payment_method_name"`
	Training          RegistrationTraining `json:"training"`
}

// RegistrationListQuery holds the listing filters after "all" has been
// cleared to the empty string.
type RegistrationListQuery struct {
	Status     string `form:"status" validate:"omitempty,regstatus"`
	TrainingID string `form:"trainingId"`
}

type PaymentMethodForm struct {
	ID          string `form:"id"`
	MethodName  string `form:"methodName" validate:"required,max=255"`
	AccountInfo string `form:"accountInfo"`
	IsActive    string `form:"isActive"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserDescriptor struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

type LoginResponse struct {
	Message   string         `json:"message"`
	User      UserDescriptor `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func ErrorResponse(c *ginext.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Code: code, Message: message})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context, message string) {
	if message == "" {
		message = InternalError
	}
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, message)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func MissingFieldsError(c *ginext.Context, message string) {
	BadResponseError(c, FieldsMissing, message)
}

func NotFoundError(c *ginext.Context, code, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

func SuccessResponse(c *ginext.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{Message: message, Data: data})
}

func SuccessCreatedResponse(c *ginext.Context, message string, data any) {
	c.JSON(http.StatusCreated, Response{Message: message, Data: data})
}
