package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"regportal/internal/dto"
	"regportal/internal/model"
	"regportal/internal/repo"
	"regportal/pkg/validator"
)

const filterAll = "all"

// registrationFilter reads the status and trainingId query parameters. An
// empty value or "all" leaves the dimension unfiltered.
func registrationFilter(ctx *ginext.Context) (model.RegistrationFilter, error) {
	var f model.RegistrationFilter

	q := dto.RegistrationListQuery{
		Status:     strings.TrimSpace(ctx.Query("status")),
		TrainingID: strings.TrimSpace(ctx.Query("trainingId")),
	}
	if q.Status == filterAll {
		q.Status = ""
	}
	if q.TrainingID == filterAll {
		q.TrainingID = ""
	}
	if err := validator.Validate(ctx, q); err != nil {
		return f, err
	}

	if q.Status != "" {
		f.Status = &q.Status
	}
	if q.TrainingID != "" {
		id, err := parseID(q.TrainingID)
		if err != nil {
			return f, fmt.Errorf("invalid trainingId %q", q.TrainingID)
		}
		f.TrainingID = &id
	}
	return f, nil
}

func (s *service) ListRegistrations(ctx *ginext.Context) {
	filter, err := registrationFilter(ctx)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}

	regs, err := s.repo.ListRegistrations(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch registrations")
		dto.InternalServerError(ctx, "Failed to fetch registrations")
		return
	}

	counts, err := s.repo.CountRegistrationsByTraining(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count registrations per training")
		counts = map[uuid.UUID]int{}
	}

	resp := make([]dto.RegistrationResponse, 0, len(regs))
	for _, r := range regs {
		resp = append(resp, dto.RegistrationResponse{
			Registration:      r.Registration,
			TrainingName:      r.TrainingName,
			PaymentMethodName: r.PaymentMethodName,
			Training: dto.RegistrationTraining{
				ID:              r.TrainingID,
				Name:            r.TrainingName,
				Quota:           r.TrainingQuota,
				RegisteredCount: counts[r.TrainingID],
			},
		})
	}
	ctx.JSON(http.StatusOK, resp)
}

// registrationUpdates keeps only the updatable registration columns of body
// and converts their values to column values. Unknown keys are ignored.
func registrationUpdates(body map[string]any) (map[string]any, error) {
	fields := make(map[string]any)
	for _, col := range repo.UpdatableRegistrationColumns {
		raw, ok := body[col]
		if !ok {
			continue
		}
		if raw == nil {
			switch col {
			case "payment_proof_url", "selected_payment_method_id":
				fields[col] = nil
				continue
			default:
				return nil, fmt.Errorf("%s cannot be null", col)
			}
		}
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", col)
		}
		str = strings.TrimSpace(str)

		switch col {
		case "training_id", "selected_payment_method_id":
			id, err := parseID(str)
			if err != nil {
				return nil, fmt.Errorf("%s has bad format", col)
			}
			fields[col] = id
		case "class_option":
			if !validator.IsClassOption(str) {
				return nil, fmt.Errorf("class_option must be one of A, B, C")
			}
			fields[col] = str
		case "status":
			if !validator.IsRegistrationStatus(str) {
				return nil, fmt.Errorf("status must be one of pending, approved, rejected")
			}
			fields[col] = str
		case "payment_proof_url":
			fields[col] = optionalString(str)
		default:
			if str == "" {
				return nil, fmt.Errorf("%s cannot be empty", col)
			}
			fields[col] = str
		}
	}
	return fields, nil
}

func (s *service) UpdateRegistration(ctx *ginext.Context) {
	var body map[string]any
	if err := ctx.ShouldBindJSON(&body); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	rawID, _ := body["id"].(string)
	id, err := parseID(rawID)
	if err != nil {
		dto.FieldBadFormatError(ctx, "id")
		return
	}

	fields, err := registrationUpdates(body)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}
	if len(fields) == 0 {
		dto.MissingFieldsError(ctx, "No updatable fields provided.")
		return
	}

	reg, err := s.repo.UpdateRegistration(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			dto.NotFoundError(ctx, dto.RegistrationNotFound, "Registration not found")
			return
		}
		s.log.Error().Err(err).Str("registration_id", id.String()).Msg("failed to update registration")
		dto.InternalServerError(ctx, "Failed to update registration")
		return
	}

	s.log.Info().Str("registration_id", id.String()).Str("status", reg.Status).Msg("registration updated")
	dto.SuccessResponse(ctx, "Registration updated", reg)
}

// DeleteRegistration removes the row only; the payment proof stays in storage.
func (s *service) DeleteRegistration(ctx *ginext.Context) {
	id, ok := bindID(ctx)
	if !ok {
		return
	}

	if err := s.repo.DeleteRegistration(ctx, id); err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			dto.NotFoundError(ctx, dto.RegistrationNotFound, "Registration not found")
			return
		}
		s.log.Error().Err(err).Str("registration_id", id.String()).Msg("failed to delete registration")
		dto.InternalServerError(ctx, "Failed to delete registration")
		return
	}

	s.log.Info().Str("registration_id", id.String()).Msg("registration deleted")
	dto.SuccessResponse(ctx, "Registration deleted", nil)
}

var csvHeader = []string{
	"id", "full_name", "nim", "class_option", "phone_number", "training_name",
	"payment_method_name", "status", "payment_proof_url", "created_at", "updated_at",
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *service) ExportRegistrationsCSV(ctx *ginext.Context) {
	filter, err := registrationFilter(ctx)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}

	regs, err := s.repo.ListRegistrations(ctx, filter)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch registrations for export")
		dto.InternalServerError(ctx, "Failed to export registrations")
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, r := range regs {
		_ = w.Write([]string{
			r.ID.String(),
			r.FullName,
			r.NIM,
			r.ClassOption,
			r.PhoneNumber,
			deref(r.TrainingName),
			deref(r.PaymentMethodName),
			r.Status,
			deref(r.PaymentProofURL),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		s.log.Error().Err(err).Msg("failed to encode registrations csv")
		dto.InternalServerError(ctx, "Failed to export registrations")
		return
	}

	filename := fmt.Sprintf("registrations-%s.csv", time.Now().Format("20060102"))
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	s.log.Info().Int("rows", len(regs)).Msg("registrations exported")
}
