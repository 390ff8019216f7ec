package service

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"

	"regportal/internal/dto"
	"regportal/internal/model"
	"regportal/internal/repo"
	"regportal/pkg/validator"
)

const msgAllFieldsRequired = "All fields are required."

// SubmitRegistration accepts the public multipart registration form. The
// status of a new registration is always pending.
func (s *service) SubmitRegistration(ctx *ginext.Context) {
	req := dto.SubmitRegistrationRequest{
		FullName:                strings.TrimSpace(ctx.PostForm("fullName")),
		NIM:                     strings.TrimSpace(ctx.PostForm("nim")),
		ClassOption:             strings.TrimSpace(ctx.PostForm("classOption")),
		PhoneNumber:             strings.TrimSpace(ctx.PostForm("phoneNumber")),
		TrainingID:              strings.TrimSpace(ctx.PostForm("trainingId")),
		SelectedPaymentMethodID: strings.TrimSpace(ctx.PostForm("selectedPaymentMethodId")),
	}
	proof, fileErr := ctx.FormFile("paymentProof")

	verr := validator.Validate(ctx, req)
	if fileErr != nil || validator.IsMissingField(verr) {
		dto.MissingFieldsError(ctx, msgAllFieldsRequired)
		return
	}
	if verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	trainingID, err := parseID(req.TrainingID)
	if err != nil {
		dto.FieldBadFormatError(ctx, "trainingId")
		return
	}
	paymentMethodID, err := parseID(req.SelectedPaymentMethodID)
	if err != nil {
		dto.FieldBadFormatError(ctx, "selectedPaymentMethodId")
		return
	}

	training, err := s.repo.GetTrainingByID(ctx, trainingID)
	if err != nil {
		if errors.Is(err, repo.ErrTrainingNotFound) {
			dto.NotFoundError(ctx, dto.TrainingNotFound, "Training not found.")
			return
		}
		s.log.Error().Err(err).Str("training_id", trainingID.String()).Msg("failed to load training for registration")
		dto.InternalServerError(ctx, "Failed to submit registration.")
		return
	}

	proofURL, proofName, err := s.storeImage(ctx, s.cfg.ProofBucket, proof)
	if err != nil {
		if isUploadRejected(err) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Payment proof must be an image no larger than the upload limit.")
			return
		}
		s.log.Error().Err(err).Msg("failed to upload payment proof")
		dto.InternalServerError(ctx, "Failed to upload payment proof.")
		return
	}

	reg := &model.Registration{
		TrainingID:              trainingID,
		FullName:                req.FullName,
		NIM:                     req.NIM,
		ClassOption:             req.ClassOption,
		PhoneNumber:             req.PhoneNumber,
		PaymentProofURL:         &proofURL,
		SelectedPaymentMethodID: &paymentMethodID,
		Status:                  model.StatusPending,
	}

	if s.cfg.EnforceQuota {
		err = s.repo.CreateRegistrationWithinQuotaTx(ctx, reg)
	} else {
		err = s.repo.CreateRegistration(ctx, reg)
	}
	if err != nil {
		s.discardObject(ctx, s.cfg.ProofBucket, proofName, "registration insert failed")
		switch {
		case errors.Is(err, repo.ErrTrainingFull):
			dto.ErrorResponse(ctx, http.StatusConflict, dto.TrainingFull, "Training quota is full.")
		case errors.Is(err, repo.ErrTrainingNotFound):
			dto.NotFoundError(ctx, dto.TrainingNotFound, "Training not found.")
		default:
			s.log.Error().Err(err).Msg("failed to insert registration")
			dto.InternalServerError(ctx, "Failed to submit registration.")
		}
		return
	}

	s.log.Info().
		Str("registration_id", reg.ID.String()).
		Str("training_id", trainingID.String()).
		Msg("registration submitted")

	if err := s.publishTask(dto.TaskMessage{
		Kind: dto.TaskRegistrationSubmitted,
		Registration: &dto.RegistrationSubmittedMessage{
			RegistrationID: reg.ID,
			TrainingID:     trainingID,
			TrainingName:   training.Name,
			FullName:       reg.FullName,
			NIM:            reg.NIM,
			ClassOption:    reg.ClassOption,
			PhoneNumber:    reg.PhoneNumber,
			SubmittedAt:    time.Now(),
		},
	}, 0); err != nil {
		s.log.Warn().Err(err).Str("registration_id", reg.ID.String()).Msg("failed to queue registration notification")
	}

	dto.SuccessCreatedResponse(ctx, "Registration successful!", reg)
}
