package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"regportal/internal/model"
)

const (
	masterAddr = "127.0.0.1:1"
	slaveAddr  = "127.0.0.1:2"
)

// newUnreachableRepo points master and slave at closed local ports, so the
// dial error of every call names the node the statement was sent to.
func newUnreachableRepo(t *testing.T) *repository {
	t.Helper()
	dsn := func(addr string) string {
		return "postgres://portal:portal@" + addr + "/regportal?sslmode=disable&connect_timeout=1"
	}
	db, err := dbpg.New(dsn(masterAddr), []string{dsn(slaveAddr)}, &dbpg.Options{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Master.Close()
		for _, s := range db.Slaves {
			_ = s.Close()
		}
	})

	log := zerolog.Nop()
	return &repository{db: db, log: &log}
}

func TestWritesGoToMaster(t *testing.T) {
	r := newUnreachableRepo(t)
	ctx := context.Background()
	id := uuid.New()

	writes := map[string]func() error{
		"CreateTraining": func() error {
			return r.CreateTraining(ctx, &model.Training{Name: "Go Basics", Quota: 10})
		},
		"UpdateTraining": func() error {
			return r.UpdateTraining(ctx, &model.Training{ID: id, Name: "Go Basics", Quota: 10})
		},
		"DeleteTraining": func() error {
			return r.DeleteTraining(ctx, id)
		},
		"CreateRegistration": func() error {
			return r.CreateRegistration(ctx, &model.Registration{TrainingID: id, Status: model.StatusPending})
		},
		"CreateRegistrationWithinQuotaTx": func() error {
			return r.CreateRegistrationWithinQuotaTx(ctx, &model.Registration{TrainingID: id, Status: model.StatusPending})
		},
		"UpdateRegistration": func() error {
			_, err := r.UpdateRegistration(ctx, id, map[string]any{"status": model.StatusApproved})
			return err
		},
		"DeleteRegistration": func() error {
			return r.DeleteRegistration(ctx, id)
		},
		"CreatePaymentMethod": func() error {
			return r.CreatePaymentMethod(ctx, &model.PaymentMethod{MethodName: "BCA"})
		},
		"UpdatePaymentMethod": func() error {
			return r.UpdatePaymentMethod(ctx, &model.PaymentMethod{ID: id, MethodName: "BCA"})
		},
		"DeletePaymentMethod": func() error {
			_, err := r.DeletePaymentMethod(ctx, id)
			return err
		},
		"CreateUserIfMissing": func() error {
			_, err := r.CreateUserIfMissing(ctx, &model.User{Username: "root", PasswordHash: "x", Role: model.RoleAdmin})
			return err
		},
	}

	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			err := write()
			require.Error(t, err)
			assert.Contains(t, err.Error(), masterAddr)
			assert.NotContains(t, err.Error(), slaveAddr)
		})
	}
}

func TestReadsGoToSlave(t *testing.T) {
	r := newUnreachableRepo(t)
	ctx := context.Background()

	_, err := r.ListTrainings(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), slaveAddr)

	_, err = r.GetPaymentMethodByID(ctx, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), slaveAddr)
}
