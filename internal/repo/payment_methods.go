package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"regportal/internal/model"
)

const paymentMethodColumns = `id, method_name, account_info, qris_image_url, is_active, created_at`

func scanPaymentMethod(row interface{ Scan(...any) error }, pm *model.PaymentMethod) error {
	return row.Scan(&pm.ID, &pm.MethodName, &pm.AccountInfo, &pm.QRISImageURL, &pm.IsActive, &pm.CreatedAt)
}

func listPaymentMethodsQuery(activeOnly bool) string {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods`
	if activeOnly {
		query += ` WHERE is_active`
	}
	return query + ` ORDER BY method_name ASC`
}

func (r *repository) ListPaymentMethods(ctx context.Context, activeOnly bool) ([]model.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, listPaymentMethodsQuery(activeOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment methods: %w", err)
	}
	defer rows.Close()

	methods := make([]model.PaymentMethod, 0)
	for rows.Next() {
		var pm model.PaymentMethod
		if err := scanPaymentMethod(rows, &pm); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment methods: %w", err)
	}
	return methods, nil
}

func (r *repository) GetPaymentMethodByID(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1`

	var pm model.PaymentMethod
	if err := scanPaymentMethod(r.db.QueryRowContext(ctx, query, id), &pm); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	return &pm, nil
}

func (r *repository) CreatePaymentMethod(ctx context.Context, pm *model.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (method_name, account_info, qris_image_url, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	row := r.db.Master.QueryRowContext(ctx, query, pm.MethodName, pm.AccountInfo, pm.QRISImageURL, pm.IsActive)
	if err := row.Scan(&pm.ID, &pm.CreatedAt); err != nil {
		return fmt.Errorf("failed to create payment method: %w", err)
	}
	return nil
}

func (r *repository) UpdatePaymentMethod(ctx context.Context, pm *model.PaymentMethod) error {
	query := `
		UPDATE payment_methods
		SET method_name = $1, account_info = $2, qris_image_url = $3, is_active = $4
		WHERE id = $5
		RETURNING created_at
	`
	row := r.db.Master.QueryRowContext(ctx, query, pm.MethodName, pm.AccountInfo, pm.QRISImageURL, pm.IsActive, pm.ID)
	if err := row.Scan(&pm.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentMethodNotFound
		}
		return fmt.Errorf("failed to update payment method: %w", err)
	}
	return nil
}

// DeletePaymentMethod removes the row and returns it as it was, so the caller
// can clean up the image it referenced.
func (r *repository) DeletePaymentMethod(ctx context.Context, id uuid.UUID) (*model.PaymentMethod, error) {
	query := `DELETE FROM payment_methods WHERE id = $1 RETURNING ` + paymentMethodColumns

	var pm model.PaymentMethod
	if err := scanPaymentMethod(r.db.Master.QueryRowContext(ctx, query, id), &pm); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, fmt.Errorf("failed to delete payment method: %w", err)
	}
	return &pm, nil
}
