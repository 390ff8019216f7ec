package service

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"regportal/internal/dto"
	"regportal/internal/model"
	"regportal/internal/repo"
	"regportal/pkg/validator"
)

// ListTrainings returns every training ordered by start date, each with the
// number of registrations currently pointing at it.
func (s *service) ListTrainings(ctx *ginext.Context) {
	trainings, err := s.repo.ListTrainings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch trainings")
		dto.InternalServerError(ctx, "Failed to fetch trainings")
		return
	}

	counts, err := s.repo.CountRegistrationsByTraining(ctx)
	if err != nil {
		// the list is still useful without counts
		s.log.Error().Err(err).Msg("failed to count registrations per training")
		counts = map[uuid.UUID]int{}
	}

	resp := make([]dto.TrainingResponse, 0, len(trainings))
	for _, t := range trainings {
		resp = append(resp, dto.TrainingResponse{Training: t, RegisteredCount: counts[t.ID]})
	}
	ctx.JSON(http.StatusOK, resp)
}

func (s *service) bindTraining(ctx *ginext.Context) (*dto.TrainingRequest, bool) {
	var req dto.TrainingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Debug().Err(err).Msg("failed to parse training request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return nil, false
	}
	return &req, true
}

func trainingFromRequest(req *dto.TrainingRequest) *model.Training {
	return &model.Training{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Quota:     req.Quota,
		Material:  req.Material,
	}
}

func (s *service) CreateTraining(ctx *ginext.Context) {
	req, ok := s.bindTraining(ctx)
	if !ok {
		return
	}

	t := trainingFromRequest(req)
	if err := s.repo.CreateTraining(ctx, t); err != nil {
		s.log.Error().Err(err).Msg("failed to create training")
		dto.InternalServerError(ctx, "Failed to create training")
		return
	}

	s.log.Info().Str("training_id", t.ID.String()).Msg("training created")
	dto.SuccessCreatedResponse(ctx, "Training created", dto.TrainingResponse{Training: *t})
}

func (s *service) UpdateTraining(ctx *ginext.Context) {
	req, ok := s.bindTraining(ctx)
	if !ok {
		return
	}
	id, err := parseID(req.ID)
	if err != nil {
		dto.FieldBadFormatError(ctx, "id")
		return
	}

	t := trainingFromRequest(req)
	t.ID = id
	if err := s.repo.UpdateTraining(ctx, t); err != nil {
		if errors.Is(err, repo.ErrTrainingNotFound) {
			dto.NotFoundError(ctx, dto.TrainingNotFound, "Training not found")
			return
		}
		s.log.Error().Err(err).Str("training_id", id.String()).Msg("failed to update training")
		dto.InternalServerError(ctx, "Failed to update training")
		return
	}

	s.log.Info().Str("training_id", id.String()).Msg("training updated")
	dto.SuccessResponse(ctx, "Training updated", dto.TrainingResponse{Training: *t})
}

func (s *service) DeleteTraining(ctx *ginext.Context) {
	id, ok := bindID(ctx)
	if !ok {
		return
	}

	if err := s.repo.DeleteTraining(ctx, id); err != nil {
		if errors.Is(err, repo.ErrTrainingNotFound) {
			dto.NotFoundError(ctx, dto.TrainingNotFound, "Training not found")
			return
		}
		s.log.Error().Err(err).Str("training_id", id.String()).Msg("failed to delete training")
		dto.InternalServerError(ctx, "Failed to delete training")
		return
	}

	s.log.Info().Str("training_id", id.String()).Msg("training deleted")
	dto.SuccessResponse(ctx, "Training deleted", nil)
}

// bindID reads a JSON body of the form {"id": "..."}.
func bindID(ctx *ginext.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return uuid.Nil, false
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.MissingFieldsError(ctx, "ID is required.")
		return uuid.Nil, false
	}
	id, err := parseID(req.ID)
	if err != nil {
		dto.FieldBadFormatError(ctx, "id")
		return uuid.Nil, false
	}
	return id, true
}
