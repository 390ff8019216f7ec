package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"regportal/internal/model"
)

const trainingColumns = `id, name, start_date, end_date, quota, material, created_at`

const listTrainingsQuery = `SELECT ` + trainingColumns + ` FROM trainings ORDER BY start_date ASC`

func scanTraining(row interface{ Scan(...any) error }, t *model.Training) error {
	return row.Scan(&t.ID, &t.Name, &t.StartDate, &t.EndDate, &t.Quota, &t.Material, &t.CreatedAt)
}

func (r *repository) ListTrainings(ctx context.Context) ([]model.Training, error) {
	rows, err := r.db.QueryContext(ctx, listTrainingsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get trainings: %w", err)
	}
	defer rows.Close()

	trainings := make([]model.Training, 0)
	for rows.Next() {
		var t model.Training
		if err := scanTraining(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan training: %w", err)
		}
		trainings = append(trainings, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trainings: %w", err)
	}
	return trainings, nil
}

func (r *repository) GetTrainingByID(ctx context.Context, id uuid.UUID) (*model.Training, error) {
	query := `SELECT ` + trainingColumns + ` FROM trainings WHERE id = $1`

	var t model.Training
	if err := scanTraining(r.db.QueryRowContext(ctx, query, id), &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrainingNotFound
		}
		return nil, fmt.Errorf("failed to get training: %w", err)
	}
	return &t, nil
}

func (r *repository) CreateTraining(ctx context.Context, t *model.Training) error {
	query := `
		INSERT INTO trainings (name, start_date, end_date, quota, material)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	row := r.db.Master.QueryRowContext(ctx, query, t.Name, t.StartDate, t.EndDate, t.Quota, t.Material)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert training: %w", err)
	}
	return nil
}

func (r *repository) UpdateTraining(ctx context.Context, t *model.Training) error {
	query := `
		UPDATE trainings
		SET name = $1, start_date = $2, end_date = $3, quota = $4, material = $5
		WHERE id = $6
		RETURNING created_at
	`
	row := r.db.Master.QueryRowContext(ctx, query, t.Name, t.StartDate, t.EndDate, t.Quota, t.Material, t.ID)
	if err := row.Scan(&t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTrainingNotFound
		}
		return fmt.Errorf("failed to update training: %w", err)
	}
	return nil
}

func (r *repository) DeleteTraining(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trainings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete training: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete training: %w", err)
	}
	if n == 0 {
		return ErrTrainingNotFound
	}
	return nil
}

// CountRegistrationsByTraining returns the number of registrations per
// training id. Trainings without registrations are absent from the map.
func (r *repository) CountRegistrationsByTraining(ctx context.Context) (map[uuid.UUID]int, error) {
	query := `
		SELECT training_id, COUNT(*)
		FROM registrations
		GROUP BY training_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id    uuid.UUID
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan registration count: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registration counts: %w", err)
	}
	return counts, nil
}
