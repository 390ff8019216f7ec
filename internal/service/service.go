package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"regportal/internal/auth"
	"regportal/internal/dto"
	"regportal/internal/repo"
	"regportal/internal/storage"
)

type Service interface {
	SubmitRegistration(ctx *ginext.Context)

	ListTrainings(ctx *ginext.Context)
	CreateTraining(ctx *ginext.Context)
	UpdateTraining(ctx *ginext.Context)
	DeleteTraining(ctx *ginext.Context)

	ListPaymentMethods(ctx *ginext.Context)
	ListActivePaymentMethods(ctx *ginext.Context)
	CreatePaymentMethod(ctx *ginext.Context)
	UpdatePaymentMethod(ctx *ginext.Context)
	DeletePaymentMethod(ctx *ginext.Context)

	ListRegistrations(ctx *ginext.Context)
	UpdateRegistration(ctx *ginext.Context)
	DeleteRegistration(ctx *ginext.Context)
	ExportRegistrationsCSV(ctx *ginext.Context)

	Login(ctx *ginext.Context)
	Me(ctx *ginext.Context)
}

// Publisher queues background tasks. *rabbit.Client satisfies it.
type Publisher interface {
	Publish(message []byte, delaySeconds int) error
}

type Config struct {
	ProofBucket         string
	QRISBucket          string
	MaxUploadBytes      int64
	EnforceQuota        bool
	CleanupDelaySeconds int
}

type Deps struct {
	Repo      repo.Repository
	Store     storage.ObjectStore
	Publisher Publisher
	Tokens    *auth.TokenIssuer
	Throttle  *auth.LoginThrottle
	Log       *zerolog.Logger
	Config    Config
}

type service struct {
	repo     repo.Repository
	store    storage.ObjectStore
	pub      Publisher
	tokens   *auth.TokenIssuer
	throttle *auth.LoginThrottle
	log      *zerolog.Logger
	cfg      Config
}

func NewService(d Deps) Service {
	cfg := d.Config
	if cfg.ProofBucket == "" {
		cfg.ProofBucket = "payment-proofs"
	}
	if cfg.QRISBucket == "" {
		cfg.QRISBucket = "qris-images"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	throttle := d.Throttle
	if throttle == nil {
		throttle = auth.NewLoginThrottle(0, 0)
	}
	log := d.Log
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &service{
		repo:     d.Repo,
		store:    d.Store,
		pub:      d.Publisher,
		tokens:   d.Tokens,
		throttle: throttle,
		log:      log,
		cfg:      cfg,
	}
}

var (
	errUploadTooLarge = errors.New("file is too large")
	errUploadNotImage = errors.New("file is not an image")
)

// isUploadRejected reports whether err is the client's fault rather than storage's.
func isUploadRejected(err error) bool {
	return errors.Is(err, errUploadTooLarge) || errors.Is(err, errUploadNotImage)
}

// storeImage uploads an image under a fresh unique name and returns its
// public URL and object name.
func (s *service) storeImage(ctx context.Context, bucket string, fh *multipart.FileHeader) (string, string, error) {
	if fh.Size > s.cfg.MaxUploadBytes {
		return "", "", errUploadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return "", "", errUploadTooLarge
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", "", errUploadNotImage
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = mtype.Extension()
	}
	name := uuid.NewString() + ext

	if err := s.store.Upload(ctx, bucket, name, mtype.String(), bytes.NewReader(data)); err != nil {
		return "", "", err
	}
	return s.store.PublicURL(bucket, name), name, nil
}

// discardObject removes a stored file nothing references any more. The
// removal is queued when a publisher is configured and done inline otherwise;
// failures are logged and never reach the caller.
func (s *service) discardObject(ctx context.Context, bucket, name, reason string) {
	if name == "" {
		return
	}
	if s.pub != nil {
		err := s.publishTask(dto.TaskMessage{
			Kind: dto.TaskObjectCleanup,
			Cleanup: &dto.ObjectCleanupMessage{
				Bucket:  bucket,
				Objects: []string{name},
				Reason:  reason,
			},
		}, s.cfg.CleanupDelaySeconds)
		if err == nil {
			s.log.Info().Str("bucket", bucket).Str("object", name).Str("reason", reason).Msg("object cleanup queued")
			return
		}
		s.log.Warn().Err(err).Str("object", name).Msg("failed to queue object cleanup, removing inline")
	}
	if err := s.store.Remove(ctx, bucket, name); err != nil {
		s.log.Warn().Err(err).Str("bucket", bucket).Str("object", name).Str("reason", reason).Msg("failed to remove object")
		return
	}
	s.log.Info().Str("bucket", bucket).Str("object", name).Str("reason", reason).Msg("object removed")
}

func (s *service) publishTask(task dto.TaskMessage, delaySeconds int) error {
	if s.pub == nil {
		return nil
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return s.pub.Publish(payload, delaySeconds)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
