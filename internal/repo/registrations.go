package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"regportal/internal/model"
)

// UpdatableRegistrationColumns is the set of registration columns an admin
// update may write. Everything else is owned by the database.
var UpdatableRegistrationColumns = []string{
	"full_name",
	"nim",
	"class_option",
	"phone_number",
	"payment_proof_url",
	"selected_payment_method_id",
	"status",
	"training_id",
}

const registrationColumns = `id, training_id, full_name, nim, class_option, phone_number,
	payment_proof_url, selected_payment_method_id, status, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }, reg *model.Registration) error {
	return row.Scan(
		&reg.ID,
		&reg.TrainingID,
		&reg.FullName,
		&reg.NIM,
		&reg.ClassOption,
		&reg.PhoneNumber,
		&reg.PaymentProofURL,
		&reg.SelectedPaymentMethodID,
		&reg.Status,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
}

const insertRegistration = `
	INSERT INTO registrations (training_id, full_name, nim, class_option, phone_number,
		payment_proof_url, selected_payment_method_id, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at
`

func registrationArgs(reg *model.Registration) []any {
	return []any{
		reg.TrainingID, reg.FullName, reg.NIM, reg.ClassOption, reg.PhoneNumber,
		reg.PaymentProofURL, reg.SelectedPaymentMethodID, reg.Status,
	}
}

func (r *repository) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	row := r.db.Master.QueryRowContext(ctx, insertRegistration, registrationArgs(reg)...)
	if err := row.Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

// CreateRegistrationWithinQuotaTx inserts reg only while the training still
// has seats. The training row is locked for the duration of the transaction so
// concurrent submissions are serialized against the same quota.
func (r *repository) CreateRegistrationWithinQuotaTx(ctx context.Context, reg *model.Registration) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var quota int
	err = tx.QueryRowContext(ctx, `
		SELECT quota
		FROM trainings
		WHERE id = $1
		FOR UPDATE
	`, reg.TrainingID).Scan(&quota)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTrainingNotFound
		}
		return fmt.Errorf("failed to lock training: %w", err)
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE training_id = $1
	`, reg.TrainingID).Scan(&count)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to count registrations: %w", err)
	}

	if count >= quota {
		_ = tx.Rollback()
		return ErrTrainingFull
	}

	err = tx.QueryRowContext(ctx, insertRegistration, registrationArgs(reg)...).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to create registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *repository) GetRegistrationByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	var reg model.Registration
	if err := scanRegistration(r.db.QueryRowContext(ctx, query, id), &reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return &reg, nil
}

// listRegistrationsQuery builds the admin listing query for filter. Rows come
// newest first.
func listRegistrationsQuery(filter model.RegistrationFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.TrainingID != nil {
		args = append(args, *filter.TrainingID)
		where = append(where, fmt.Sprintf("r.training_id = $%d", len(args)))
	}

	query := `
		SELECT r.id, r.training_id, r.full_name, r.nim, r.class_option, r.phone_number,
		       r.payment_proof_url, r.selected_payment_method_id, r.status, r.created_at, r.updated_at,
		       t.name, t.quota, pm.method_name
		FROM registrations r
		LEFT JOIN trainings t ON t.id = r.training_id
		LEFT JOIN payment_methods pm ON pm.id = r.selected_payment_method_id
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC"
	return query, args
}

func (r *repository) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.RegistrationDetail, error) {
	query, args := listRegistrationsQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]model.RegistrationDetail, 0)
	for rows.Next() {
		var d model.RegistrationDetail
		if err := rows.Scan(
			&d.ID,
			&d.TrainingID,
			&d.FullName,
			&d.NIM,
			&d.ClassOption,
			&d.PhoneNumber,
			&d.PaymentProofURL,
			&d.SelectedPaymentMethodID,
			&d.Status,
			&d.CreatedAt,
			&d.UpdatedAt,
			&d.TrainingName,
			&d.TrainingQuota,
			&d.PaymentMethodName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return regs, nil
}

// UpdateRegistration writes the given columns of one registration. Keys must
// come from UpdatableRegistrationColumns.
func (r *repository) UpdateRegistration(ctx context.Context, id uuid.UUID, fields map[string]any) (*model.Registration, error) {
	if len(fields) == 0 {
		return r.GetRegistrationByID(ctx, id)
	}

	columns := make([]string, 0, len(fields))
	for col := range fields {
		if !slices.Contains(UpdatableRegistrationColumns, col) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		columns = append(columns, col)
	}
	slices.Sort(columns)

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	for _, col := range columns {
		args = append(args, fields[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE registrations SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), registrationColumns)

	var reg model.Registration
	if err := scanRegistration(r.db.Master.QueryRowContext(ctx, query, args...), &reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}
	return &reg, nil
}

func (r *repository) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	if n == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}
