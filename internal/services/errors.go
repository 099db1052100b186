package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcastroba/red-simpatizantes/internal/db"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/tree"
)

// Service errors; the API layer maps them to status codes
var (
	ErrNotFound  = tree.ErrNotFound
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid input")

	// ErrVerificationFailed means the cedula exists but neither phone nor email matched
	ErrVerificationFailed = errors.New("identity verification failed")
)

// PersonStore is the persistence contract for sympathizers
type PersonStore interface {
	tree.ChildSource
	FindByID(ctx context.Context, id int64) (*models.Person, error)
	FindByCedula(ctx context.Context, cedula string) (*models.Person, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Person, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, p *models.Person) error
	Update(ctx context.Context, id int64, upd models.PersonUpdate) (*models.Person, error)
	Delete(ctx context.Context, id int64) error
	ToggleLinkEnabled(ctx context.Context, id int64) (*models.Person, error)
	ToggleSuspended(ctx context.Context, id int64) (*models.Person, error)
	ListRoots(ctx context.Context) ([]models.NetworkRoot, error)
	List(ctx context.Context, params models.PersonListParams) (*models.PersonListResponse, error)
	Count(ctx context.Context) (int, error)
}

// LevelLabelStore is the persistence contract for level label overrides
type LevelLabelStore interface {
	ListLevelLabels(ctx context.Context, ownerID int64) ([]models.LevelLabel, error)
	UpsertLevelLabel(ctx context.Context, ownerID int64, level int, name string) (*models.LevelLabel, error)
	DeleteLevelLabel(ctx context.Context, ownerID int64, level int) error
}

// LocationStore is the persistence contract for departments and municipalities
type LocationStore interface {
	ListDepartments(ctx context.Context) ([]models.Department, error)
	FindDepartment(ctx context.Context, id int64) (*models.Department, error)
	ListMunicipalities(ctx context.Context, departmentID int64) ([]models.Municipality, error)
	FindMunicipality(ctx context.Context, id int64) (*models.Municipality, error)
	EnsureDepartment(ctx context.Context, name string) (*models.Department, bool, error)
	EnsureMunicipality(ctx context.Context, departmentID int64, name string) (*models.Municipality, bool, error)
}

// storeErr translates repository sentinels into service sentinels
func storeErr(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case errors.Is(err, db.ErrDuplicate):
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound) || errors.Is(err, ErrNotFound)
}
