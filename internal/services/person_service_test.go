package services

import (
	"context"
	"testing"
	"time"

	"github.com/jcastroba/red-simpatizantes/internal/db"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPersonService(repo *db.MemoryRepository) *PersonService {
	repo.SeedLocations(
		[]models.Department{{ID: 1, Name: "Antioquia"}, {ID: 2, Name: "Caldas"}},
		[]models.Municipality{
			{ID: 10, Name: "Medellín", DepartmentID: 1},
			{ID: 11, Name: "Bello", DepartmentID: 1},
			{ID: 20, Name: "Manizales", DepartmentID: 2},
		},
	)
	locations := NewLocationService(repo, zap.NewNop())
	return NewPersonService(repo, locations, newNetworkService(repo, tree.DefaultLimits), zap.NewNop())
}

func int64p(v int64) *int64 { return &v }

func signup(cedula, referrerCode string) models.RegisterRequest {
	return models.RegisterRequest{
		Nombres:      "Laura",
		Apellidos:    "Rincón",
		Cedula:       cedula,
		Phone:        "3157654321",
		Sexo:         models.SexoFemenino,
		ReferrerCode: referrerCode,
	}
}

func TestRegister_UnderReferrer(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)

	p, err := svc.Register(context.Background(), signup(" 555 ", "code0003"))
	require.NoError(t, err)

	assert.Equal(t, "555", p.Cedula)
	require.NotNil(t, p.ReferrerID)
	assert.Equal(t, int64(3), *p.ReferrerID)
	assert.True(t, ValidReferralCode(p.ReferralCode))
	assert.True(t, p.LinkEnabled)
	assert.Nil(t, p.ActivatedAt)

	check, err := svc.network.IsDescendant(context.Background(), 1, p.ID)
	require.NoError(t, err)
	assert.True(t, check.IsDescendant)
}

func TestRegister_WithoutReferrerCreatesFounder(t *testing.T) {
	svc := newPersonService(db.NewMemoryRepository())
	name := "Red Sur"
	req := signup("777", "")
	req.NetworkName = &name

	p, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, p.IsRoot())
	assert.Nil(t, p.NetworkName)
}

func TestRegister_Errors(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()

	_, err := svc.Register(ctx, signup("555", "NOPE0000"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Register(ctx, signup("1000000001", "CODE0002"))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.ToggleLinkEnabled(ctx, 2)
	require.NoError(t, err)
	_, err = svc.Register(ctx, signup("556", "CODE0002"))
	assert.ErrorIs(t, err, ErrForbidden)

	bad := signup("557", "")
	bad.Sexo = "X"
	_, err = svc.Register(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestReferrerByCode(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()

	ref, err := svc.ReferrerByCode(ctx, "CODE0001")
	require.NoError(t, err)
	assert.Equal(t, "Nombre1", ref.Nombres)

	_, err = svc.ReferrerByCode(ctx, "ZZZZ9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckCedula(t *testing.T) {
	svc := newPersonService(scenarioRepo())
	ctx := context.Background()

	exists, hint, err := svc.CheckCedula(ctx, "1000000002")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "3*******67", hint)

	exists, hint, err = svc.CheckCedula(ctx, "42")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, hint)

	_, _, err = svc.CheckCedula(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCreateNetworkAndDetail(t *testing.T) {
	svc := newPersonService(scenarioRepo())
	ctx := context.Background()
	name := "Red Caribe"
	req := signup("900", "")
	req.NetworkName = &name

	root, err := svc.CreateNetwork(ctx, req)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Equal(t, "Red Caribe", root.NetworkDisplayName())

	_, err = svc.CreateNetwork(ctx, req)
	assert.ErrorIs(t, err, ErrConflict)

	detail, err := svc.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ReferralsCount)
	require.NotNil(t, detail.TotalNetworkSize)
	assert.Equal(t, 1, *detail.TotalNetworkSize)
	require.NotNil(t, detail.ReferrerName)
	assert.Equal(t, "Nombre1 Apellido1", *detail.ReferrerName)

	_, err = svc.Get(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NetworkFilter(t *testing.T) {
	repo := scenarioRepo()
	repo.Seed(seedPerson(10, 0, time.Hour))
	svc := newPersonService(repo)

	network := int64(3)
	resp, err := svc.List(context.Background(), models.PersonListParams{}, &network)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)

	resp, err = svc.List(context.Background(), models.PersonListParams{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
}

func TestAdminMutations(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()

	name := "Ana"
	p, err := svc.Update(ctx, 2, models.PersonUpdate{Nombres: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Nombres)

	empty := " "
	_, err = svc.Update(ctx, 2, models.PersonUpdate{Nombres: &empty})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Update(ctx, 99, models.PersonUpdate{Nombres: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	p, err = svc.ToggleLink(ctx, 2)
	require.NoError(t, err)
	assert.False(t, p.LinkEnabled)

	p, err = svc.ToggleSuspension(ctx, 2)
	require.NoError(t, err)
	assert.True(t, p.IsSuspended)
	_, err = svc.RequireActive(ctx, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Delete(ctx, 3))
	assert.ErrorIs(t, svc.Delete(ctx, 3), ErrNotFound)
	g, err := svc.RequireActive(ctx, 4)
	require.NoError(t, err)
	assert.True(t, g.IsRoot())
}

func TestImport(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()

	bad := signup("", "")
	req := models.ImportRequest{
		ParentID: 4,
		Referrals: []models.RegisterRequest{
			signup("2001", ""),
			signup("1000000002", ""), // already registered
			signup("2001", ""),       // repeated in the same batch
			bad,
			signup("2002", ""),
		},
	}

	result, err := svc.Import(ctx, 1, req)
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	for _, p := range result.Created {
		require.NotNil(t, p.ReferrerID)
		assert.Equal(t, int64(4), *p.ReferrerID)
	}
	assert.Equal(t, []string{"1000000002", "2001"}, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)

	size, err := svc.network.NetworkSize(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}

func TestImport_OutsideSubtreeIsForbidden(t *testing.T) {
	svc := newPersonService(scenarioRepo())
	ctx := context.Background()

	_, err := svc.Import(ctx, 2, models.ImportRequest{ParentID: 4, Referrals: []models.RegisterRequest{signup("1", "")}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Import(ctx, 1, models.ImportRequest{ParentID: 404, Referrals: []models.RegisterRequest{signup("1", "")}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegister_LeavesAccountInactive(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()

	founder, err := svc.CreateNetwork(ctx, signup("900", ""))
	require.NoError(t, err)
	assert.Nil(t, founder.ActivatedAt)

	result, err := svc.Import(ctx, 1, models.ImportRequest{ParentID: 4, Referrals: []models.RegisterRequest{signup("901", "")}})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Nil(t, result.Created[0].ActivatedAt)

	stored, err := repo.FindByCedula(ctx, "901")
	require.NoError(t, err)
	assert.Nil(t, stored.ActivatedAt)
}

func TestRegister_Location(t *testing.T) {
	svc := newPersonService(scenarioRepo())
	ctx := context.Background()

	req := signup("600", "CODE0001")
	req.MunicipioID = int64p(11)
	p, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, p.DepartmentID)
	assert.Equal(t, int64(1), *p.DepartmentID)
	assert.Equal(t, "Antioquia", *p.DepartmentName)
	assert.Equal(t, "Bello", *p.MunicipioName)

	req = signup("601", "CODE0001")
	req.DepartmentID = int64p(2)
	req.MunicipioID = int64p(10)
	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrInvalid)

	req = signup("602", "CODE0001")
	req.DepartmentID = int64p(99)
	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrInvalid)

	exists, _, err := svc.CheckCedula(ctx, "601")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdate_Location(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()

	p, err := svc.Update(ctx, 2, models.PersonUpdate{MunicipioID: int64p(10)})
	require.NoError(t, err)
	require.NotNil(t, p.DepartmentID)
	assert.Equal(t, int64(1), *p.DepartmentID)
	assert.Equal(t, "Medellín", *p.MunicipioName)

	// Caldas does not contain Medellín
	_, err = svc.Update(ctx, 2, models.PersonUpdate{DepartmentID: int64p(2)})
	assert.ErrorIs(t, err, ErrInvalid)

	p, err = svc.Update(ctx, 2, models.PersonUpdate{DepartmentID: int64p(2), MunicipioID: int64p(20)})
	require.NoError(t, err)
	assert.Equal(t, "Caldas", *p.DepartmentName)
	assert.Equal(t, "Manizales", *p.MunicipioName)
}

func TestLinkByCedula(t *testing.T) {
	svc := newPersonService(scenarioRepo())
	ctx := context.Background()

	p, err := svc.LinkByCedula(ctx, " 1000000003 ")
	require.NoError(t, err)
	assert.Equal(t, "CODE0003", p.ReferralCode)

	_, err = svc.LinkByCedula(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.LinkByCedula(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyIdentity(t *testing.T) {
	repo := scenarioRepo()
	svc := newPersonService(repo)
	ctx := context.Background()
	email := "Nombre2@Example.com"
	_, err := repo.Update(ctx, 2, models.PersonUpdate{Email: &email})
	require.NoError(t, err)

	p, err := svc.VerifyIdentity(ctx, models.VerifyIdentityRequest{Cedula: "1000000002", Phone: "3001234567"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)

	p, err = svc.VerifyIdentity(ctx, models.VerifyIdentityRequest{Cedula: "1000000002", Email: "nombre2@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)

	_, err = svc.VerifyIdentity(ctx, models.VerifyIdentityRequest{Cedula: "1000000002", Phone: "3009999999"})
	assert.ErrorIs(t, err, ErrVerificationFailed)
	_, err = svc.VerifyIdentity(ctx, models.VerifyIdentityRequest{Cedula: "1000000002"})
	assert.ErrorIs(t, err, ErrVerificationFailed)
	_, err = svc.VerifyIdentity(ctx, models.VerifyIdentityRequest{Cedula: "42", Phone: "3001234567"})
	assert.ErrorIs(t, err, ErrNotFound)
}
