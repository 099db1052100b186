package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcastroba/red-simpatizantes/internal/models"
	"go.uber.org/zap"
)

// LocationService serves the department and municipality catalog
type LocationService struct {
	store  LocationStore
	logger *zap.Logger
}

// NewLocationService creates a new location service
func NewLocationService(store LocationStore, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{store: store, logger: logger}
}

// Departments lists every department
func (s *LocationService) Departments(ctx context.Context) ([]models.Department, error) {
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// Municipalities lists the municipalities of an existing department
func (s *LocationService) Municipalities(ctx context.Context, departmentID int64) ([]models.Municipality, error) {
	if _, err := s.store.FindDepartment(ctx, departmentID); err != nil {
		return nil, storeErr(err, "department %d", departmentID)
	}
	municipalities, err := s.store.ListMunicipalities(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list municipalities of %d: %w", departmentID, err)
	}
	return municipalities, nil
}

// Resolve checks a department/municipality pair given by a client.
// A municipality alone implies its department; a pair must agree.
func (s *LocationService) Resolve(ctx context.Context, departmentID, municipioID *int64) (*models.Department, *models.Municipality, error) {
	var dept *models.Department
	var mun *models.Municipality

	if municipioID != nil {
		m, err := s.store.FindMunicipality(ctx, *municipioID)
		if err != nil {
			if isNotFound(err) {
				return nil, nil, fmt.Errorf("municipio %d does not exist: %w", *municipioID, ErrInvalid)
			}
			return nil, nil, fmt.Errorf("lookup municipio: %w", err)
		}
		if departmentID != nil && *departmentID != m.DepartmentID {
			return nil, nil, fmt.Errorf("municipio %d is not in department %d: %w", m.ID, *departmentID, ErrInvalid)
		}
		mun = m
		if departmentID == nil {
			departmentID = &m.DepartmentID
		}
	}

	if departmentID != nil {
		d, err := s.store.FindDepartment(ctx, *departmentID)
		if err != nil {
			if isNotFound(err) {
				return nil, nil, fmt.Errorf("department %d does not exist: %w", *departmentID, ErrInvalid)
			}
			return nil, nil, fmt.Errorf("lookup department: %w", err)
		}
		dept = d
	}
	return dept, mun, nil
}

// Seed ensures every listed department and municipality exists. Safe to re-run.
func (s *LocationService) Seed(ctx context.Context, seed models.LocationSeed) (*models.SeedResult, error) {
	result := &models.SeedResult{}
	for _, ds := range seed.Departments {
		name := strings.TrimSpace(ds.Name)
		if name == "" {
			return nil, fmt.Errorf("department without name: %w", ErrInvalid)
		}
		dept, created, err := s.store.EnsureDepartment(ctx, name)
		if err != nil {
			return nil, err
		}
		if created {
			result.Departments++
		}
		for _, raw := range ds.Municipalities {
			munName := strings.TrimSpace(raw)
			if munName == "" {
				continue
			}
			_, created, err := s.store.EnsureMunicipality(ctx, dept.ID, munName)
			if err != nil {
				return nil, err
			}
			if created {
				result.Municipalities++
			}
		}
		s.logger.Info("department seeded", zap.String("department", name), zap.Int("municipalities", len(ds.Municipalities)))
	}
	return result, nil
}
