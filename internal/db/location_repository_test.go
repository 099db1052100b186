package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupLocationRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *LocationRepository) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlDB, mock, NewLocationRepository(NewFromDB(sqlDB, zap.NewNop()))
}

func TestListDepartments(t *testing.T) {
	sqlDB, mock, repo := setupLocationRepo(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`SELECT id, name FROM departments ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Antioquia").
			AddRow(int64(2), "Caldas"))

	departments, err := repo.ListDepartments(context.Background())

	require.NoError(t, err)
	require.Len(t, departments, 2)
	assert.Equal(t, "Caldas", departments[1].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDepartment_NotFound(t *testing.T) {
	sqlDB, mock, repo := setupLocationRepo(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`FROM departments WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindDepartment(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMunicipalities(t *testing.T) {
	sqlDB, mock, repo := setupLocationRepo(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`FROM municipalities WHERE department_id = \$1 ORDER BY name`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}).
			AddRow(int64(10), "Bello", int64(1)).
			AddRow(int64(11), "Medellín", int64(1)))

	municipalities, err := repo.ListMunicipalities(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, municipalities, 2)
	assert.Equal(t, int64(1), municipalities[0].DepartmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMunicipality(t *testing.T) {
	sqlDB, mock, repo := setupLocationRepo(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`FROM municipalities WHERE id = \$1`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id"}).AddRow(int64(11), "Medellín", int64(1)))
	mock.ExpectQuery(`FROM municipalities WHERE id = \$1`).
		WithArgs(int64(12)).
		WillReturnError(sql.ErrNoRows)

	m, err := repo.FindMunicipality(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "Medellín", m.Name)

	_, err = repo.FindMunicipality(context.Background(), 12)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureLocations(t *testing.T) {
	sqlDB, mock, repo := setupLocationRepo(t)
	defer sqlDB.Close()

	mock.ExpectQuery(`INSERT INTO departments \(name\) VALUES \(\$1\) ON CONFLICT \(name\)`).
		WithArgs("Antioquia").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created"}).AddRow(int64(1), "Antioquia", false))
	mock.ExpectQuery(`INSERT INTO municipalities .+ ON CONFLICT \(department_id, name\)`).
		WithArgs(int64(1), "Envigado").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department_id", "created"}).AddRow(int64(30), "Envigado", int64(1), true))

	d, created, err := repo.EnsureDepartment(context.Background(), "Antioquia")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), d.ID)

	m, created, err := repo.EnsureMunicipality(context.Background(), d.ID, "Envigado")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(30), m.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
