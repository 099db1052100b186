package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcastroba/red-simpatizantes/internal/models"
)

// LocationRepository handles departments and municipalities
type LocationRepository struct {
	db *Database
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *Database) *LocationRepository {
	return &LocationRepository{db: db}
}

// ListDepartments returns every department ordered by name
func (r *LocationRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := r.db.DB.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()

	departments := []models.Department{}
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over departments: %w", err)
	}
	return departments, nil
}

// FindDepartment retrieves a department by id
func (r *LocationRepository) FindDepartment(ctx context.Context, id int64) (*models.Department, error) {
	var d models.Department
	err := r.db.DB.QueryRowContext(ctx, `SELECT id, name FROM departments WHERE id = $1`, id).Scan(&d.ID, &d.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &d, nil
}

// ListMunicipalities returns the municipalities of a department ordered by name
func (r *LocationRepository) ListMunicipalities(ctx context.Context, departmentID int64) ([]models.Municipality, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, name, department_id FROM municipalities WHERE department_id = $1 ORDER BY name, id`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query municipalities: %w", err)
	}
	defer rows.Close()

	municipalities := []models.Municipality{}
	for rows.Next() {
		var m models.Municipality
		if err := rows.Scan(&m.ID, &m.Name, &m.DepartmentID); err != nil {
			return nil, fmt.Errorf("failed to scan municipality: %w", err)
		}
		municipalities = append(municipalities, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over municipalities: %w", err)
	}
	return municipalities, nil
}

// FindMunicipality retrieves a municipality by id
func (r *LocationRepository) FindMunicipality(ctx context.Context, id int64) (*models.Municipality, error) {
	var m models.Municipality
	err := r.db.DB.QueryRowContext(ctx,
		`SELECT id, name, department_id FROM municipalities WHERE id = $1`, id).Scan(&m.ID, &m.Name, &m.DepartmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get municipality: %w", err)
	}
	return &m, nil
}

// EnsureDepartment returns the department with that name, creating it if needed.
// created reports whether the row was inserted by this call.
func (r *LocationRepository) EnsureDepartment(ctx context.Context, name string) (*models.Department, bool, error) {
	// xmax = 0 only for freshly inserted tuples
	query := `
		INSERT INTO departments (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, (xmax = 0) AS created`

	var d models.Department
	var created bool
	if err := r.db.DB.QueryRowContext(ctx, query, name).Scan(&d.ID, &d.Name, &created); err != nil {
		return nil, false, fmt.Errorf("failed to ensure department %q: %w", name, err)
	}
	return &d, created, nil
}

// EnsureMunicipality returns the named municipality of a department, creating it if needed
func (r *LocationRepository) EnsureMunicipality(ctx context.Context, departmentID int64, name string) (*models.Municipality, bool, error) {
	query := `
		INSERT INTO municipalities (department_id, name) VALUES ($1, $2)
		ON CONFLICT (department_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, department_id, (xmax = 0) AS created`

	var m models.Municipality
	var created bool
	err := r.db.DB.QueryRowContext(ctx, query, departmentID, name).Scan(&m.ID, &m.Name, &m.DepartmentID, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure municipality %q: %w", name, err)
	}
	return &m, created, nil
}
