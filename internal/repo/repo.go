package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"regportal/internal/model"
)

var (
	ErrTrainingNotFound      = errors.New("training not found")
	ErrTrainingFull          = errors.New("training quota is full")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrUnknownColumn         = errors.New("unknown column")
)

type Repository interface {
	ListTrainings(ctx context.Context) ([]model.Training, error)
	GetTrainingByID(ctx context.Context, id uuid.UUID) (*model.Training, error)
	CreateTraining(ctx context.Context, t *model.Training) error
	UpdateTraining(ctx context.Context, t *model.Training) error
	DeleteTraining(ctx context.Context, id uuid.UUID) error
	CountRegistrationsByTraining(ctx context.Context) (map[uuid.UUID]int, error)

	CreateRegistration(ctx context.Context, reg *model.Registration) error
	CreateRegistrationWithinQuotaTx(ctx context.Context, reg *model.Registration) error
	GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.RegistrationDetail, error)
	UpdateRegistration(ctx context.Context, id uuid.UUID, fields map[string]any) (*model.Registration, error)
	DeleteRegistration(ctx context.Context, id uuid.UUID) error

	ListPaymentMethods(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error)
	GetPaymentMethodByID(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, pm *model.PaymentMethod) error
	UpdatePaymentMethod(ctx context.Context, pm *model.PaymentMethod) error
	DeletePaymentMethod(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error)

	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUserIfMissing(ctx context.Context, u *model.User) (bool, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

// repository sends every statement that modifies data to db.Master. dbpg
// spreads QueryContext and QueryRowContext over the slaves when any are set.
type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	return r.runMigrations(migrationsDir, "*.up.sql", false)
}

func (r *repository) MigrateDown(migrationsDir string) error {
	return r.runMigrations(migrationsDir, "*.down.sql", true)
}

func (r *repository) runMigrations(migrationsDir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Str("dir", migrationsDir).Str("pattern", pattern).Int("files", len(files)).Msg("migrations applied")
	return nil
}
