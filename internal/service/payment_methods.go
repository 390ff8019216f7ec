package service

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"regportal/internal/dto"
	"regportal/internal/model"
	"regportal/internal/repo"
	"regportal/internal/storage"
	"regportal/pkg/validator"
)

func (s *service) ListPaymentMethods(ctx *ginext.Context) {
	s.listPaymentMethods(ctx, false)
}

// ListActivePaymentMethods is the public view used by the registration form.
func (s *service) ListActivePaymentMethods(ctx *ginext.Context) {
	s.listPaymentMethods(ctx, true)
}

func (s *service) listPaymentMethods(ctx *ginext.Context, activeOnly bool) {
	methods, err := s.repo.ListPaymentMethods(ctx, activeOnly)
	if err != nil {
		s.log.Error().Err(err).Bool("active_only", activeOnly).Msg("failed to fetch payment methods")
		dto.InternalServerError(ctx, "Failed to fetch payment methods")
		return
	}
	ctx.JSON(http.StatusOK, methods)
}

func paymentMethodForm(ctx *ginext.Context) dto.PaymentMethodForm {
	return dto.PaymentMethodForm{
		ID:          strings.TrimSpace(ctx.PostForm("id")),
		MethodName:  strings.TrimSpace(ctx.PostForm("methodName")),
		AccountInfo: ctx.PostForm("accountInfo"),
		IsActive:    ctx.PostForm("isActive"),
	}
}

// qrisUpload returns the optional QRIS image of a payment method form.
func qrisUpload(ctx *ginext.Context) *multipart.FileHeader {
	fh, err := ctx.FormFile("qrisImage")
	if err != nil {
		return nil
	}
	return fh
}

func (s *service) uploadQRIS(ctx *ginext.Context, fh *multipart.FileHeader) (string, string, bool) {
	url, name, err := s.storeImage(ctx, s.cfg.QRISBucket, fh)
	if err != nil {
		if isUploadRejected(err) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "QRIS image must be an image no larger than the upload limit.")
			return "", "", false
		}
		s.log.Error().Err(err).Msg("failed to upload QRIS image")
		dto.InternalServerError(ctx, "Failed to upload QRIS image.")
		return "", "", false
	}
	return url, name, true
}

func (s *service) CreatePaymentMethod(ctx *ginext.Context) {
	form := paymentMethodForm(ctx)
	if verr := validator.Validate(ctx, form); verr != nil {
		if validator.IsMissingField(verr) {
			dto.MissingFieldsError(ctx, "Method name is required.")
			return
		}
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	pm := &model.PaymentMethod{
		MethodName:  form.MethodName,
		AccountInfo: optionalString(form.AccountInfo),
		IsActive:    form.IsActive == "true",
	}

	var uploaded string
	if fh := qrisUpload(ctx); fh != nil {
		url, name, ok := s.uploadQRIS(ctx, fh)
		if !ok {
			return
		}
		pm.QRISImageURL = &url
		uploaded = name
	}

	if err := s.repo.CreatePaymentMethod(ctx, pm); err != nil {
		s.discardObject(ctx, s.cfg.QRISBucket, uploaded, "payment method insert failed")
		s.log.Error().Err(err).Msg("failed to create payment method")
		dto.InternalServerError(ctx, "Failed to create payment method")
		return
	}

	s.log.Info().Str("payment_method_id", pm.ID.String()).Msg("payment method created")
	dto.SuccessCreatedResponse(ctx, "Payment method created", pm)
}

// UpdatePaymentMethod overwrites a payment method. A new QRIS image replaces
// the stored one; the old file is discarded only after the row points at the
// new one.
func (s *service) UpdatePaymentMethod(ctx *ginext.Context) {
	form := paymentMethodForm(ctx)
	verr := validator.Validate(ctx, form)
	if form.ID == "" || validator.IsMissingField(verr) {
		dto.MissingFieldsError(ctx, "ID and method name are required.")
		return
	}
	if verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}
	id, err := parseID(form.ID)
	if err != nil {
		dto.FieldBadFormatError(ctx, "id")
		return
	}

	existing, err := s.repo.GetPaymentMethodByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrPaymentMethodNotFound) {
			dto.NotFoundError(ctx, dto.PaymentMethodNotFound, "Payment method not found")
			return
		}
		s.log.Error().Err(err).Str("payment_method_id", id.String()).Msg("failed to load payment method")
		dto.InternalServerError(ctx, "Failed to update payment method")
		return
	}

	pm := &model.PaymentMethod{
		ID:           id,
		MethodName:   form.MethodName,
		AccountInfo:  optionalString(form.AccountInfo),
		QRISImageURL: existing.QRISImageURL,
		IsActive:     form.IsActive == "true",
	}

	var uploaded string
	if fh := qrisUpload(ctx); fh != nil {
		url, name, ok := s.uploadQRIS(ctx, fh)
		if !ok {
			return
		}
		pm.QRISImageURL = &url
		uploaded = name
	}

	if err := s.repo.UpdatePaymentMethod(ctx, pm); err != nil {
		s.discardObject(ctx, s.cfg.QRISBucket, uploaded, "payment method update failed")
		if errors.Is(err, repo.ErrPaymentMethodNotFound) {
			dto.NotFoundError(ctx, dto.PaymentMethodNotFound, "Payment method not found")
			return
		}
		s.log.Error().Err(err).Str("payment_method_id", id.String()).Msg("failed to update payment method")
		dto.InternalServerError(ctx, "Failed to update payment method")
		return
	}

	if uploaded != "" && existing.QRISImageURL != nil {
		s.discardObject(ctx, s.cfg.QRISBucket, storage.ObjectNameFromURL(*existing.QRISImageURL), "qris image replaced")
	}

	s.log.Info().Str("payment_method_id", id.String()).Msg("payment method updated")
	dto.SuccessResponse(ctx, "Payment method updated", pm)
}

func (s *service) DeletePaymentMethod(ctx *ginext.Context) {
	id, ok := bindID(ctx)
	if !ok {
		return
	}

	pm, err := s.repo.DeletePaymentMethod(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrPaymentMethodNotFound) {
			dto.NotFoundError(ctx, dto.PaymentMethodNotFound, "Payment method not found")
			return
		}
		s.log.Error().Err(err).Str("payment_method_id", id.String()).Msg("failed to delete payment method")
		dto.InternalServerError(ctx, "Failed to delete payment method")
		return
	}

	if pm.QRISImageURL != nil {
		s.discardObject(ctx, s.cfg.QRISBucket, storage.ObjectNameFromURL(*pm.QRISImageURL), "payment method deleted")
	}

	s.log.Info().Str("payment_method_id", id.String()).Msg("payment method deleted")
	dto.SuccessResponse(ctx, "Payment method deleted", nil)
}
