package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jcastroba/red-simpatizantes/internal/db"
	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedPerson(id, referrer int64, offset time.Duration) models.Person {
	p := models.Person{
		ID:           id,
		Cedula:       fmt.Sprintf("10%08d", id),
		Nombres:      fmt.Sprintf("Nombre%d", id),
		Apellidos:    fmt.Sprintf("Apellido%d", id),
		Phone:        "3001234567",
		Sexo:         models.SexoOtro,
		ReferralCode: fmt.Sprintf("CODE%04d", id),
		LinkEnabled:  true,
		CreatedAt:    baseTime.Add(offset),
	}
	if referrer != 0 {
		r := referrer
		p.ReferrerID = &r
	}
	return p
}

// scenario: R(1) -> [C1(2), C2(3)], C2 -> [G(4)]; C1 created before C2.
func scenarioRepo() *db.MemoryRepository {
	repo := db.NewMemoryRepository()
	repo.Seed(
		seedPerson(1, 0, 0),
		seedPerson(2, 1, time.Minute),
		seedPerson(3, 1, 2*time.Minute),
		seedPerson(4, 3, 3*time.Minute),
	)
	return repo
}

func newNetworkService(repo *db.MemoryRepository, limits tree.Limits) *NetworkService {
	return NewNetworkService(repo, repo, NetworkOptions{Limits: limits}, zap.NewNop())
}

func nodesByID(view *models.NetworkView) map[int64]models.NodeView {
	out := make(map[int64]models.NodeView, len(view.Nodes))
	for _, n := range view.Nodes {
		out[n.ID] = n
	}
	return out
}

func TestBuildNetworkView_Scenario(t *testing.T) {
	repo := scenarioRepo()
	svc := newNetworkService(repo, tree.DefaultLimits)
	_, err := repo.UpsertLevelLabel(context.Background(), 1, 1, "Coordinadores")
	require.NoError(t, err)

	view, err := svc.BuildNetworkView(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, view.Nodes, 4)
	nodes := nodesByID(view)
	assert.Equal(t, 50.0, nodes[1].X)
	assert.Equal(t, 0.0, nodes[2].X)
	assert.Equal(t, 100.0, nodes[3].X)
	assert.Equal(t, 100.0, nodes[4].X)
	assert.Equal(t, 200.0, nodes[4].Y)
	assert.Equal(t, 2, nodes[4].Level)

	assert.Equal(t, models.NodeMe, nodes[1].Type)
	assert.Equal(t, models.NodeReferral, nodes[4].Type)
	assert.Equal(t, 2, nodes[1].ReferralsCount)
	assert.Equal(t, 0, nodes[2].ReferralsCount)

	assert.ElementsMatch(t, []models.Link{{Source: 1, Target: 2}, {Source: 1, Target: 3}, {Source: 3, Target: 4}}, view.Links)
	assert.Equal(t, 3, view.NetworkSize)
	assert.Equal(t, map[int]string{1: "Coordinadores"}, view.LevelLabels)
}

func TestBuildNetworkView_SponsorAbovePerson(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.DefaultLimits)

	view, err := svc.BuildNetworkView(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, view.Nodes, 3)
	sponsor := view.Nodes[0]
	assert.Equal(t, int64(1), sponsor.ID)
	assert.Equal(t, models.NodeSponsor, sponsor.Type)
	assert.Equal(t, -1, sponsor.Level)
	assert.Equal(t, -100.0, sponsor.Y)
	assert.Equal(t, nodesByID(view)[3].X, sponsor.X)

	assert.Contains(t, view.Links, models.Link{Source: 1, Target: 3})
	assert.Equal(t, 1, view.NetworkSize)

	seen := map[int64]bool{}
	for _, n := range view.Nodes {
		assert.False(t, seen[n.ID], "node %d appears twice", n.ID)
		seen[n.ID] = true
	}
}

func TestBuildNetworkView_NotFound(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.DefaultLimits)

	_, err := svc.BuildNetworkView(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuildNetworkView_SizeLimit(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.Limits{MaxNodes: 2})

	_, err := svc.BuildNetworkView(context.Background(), 1)
	assert.ErrorIs(t, err, tree.ErrSizeLimitExceeded)
}

func TestBuildDashboard_NewestFirst(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.DefaultLimits)

	dash, err := svc.BuildDashboard(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "Nombre1", dash.Nombres)
	assert.Equal(t, "CODE0001", dash.ReferralCode)
	assert.Equal(t, 2, dash.ReferralsCount)
	assert.Equal(t, 3, dash.NetworkSize)

	require.Len(t, dash.Referrals, 2)
	assert.Equal(t, int64(3), dash.Referrals[0].ID)
	assert.Equal(t, int64(2), dash.Referrals[1].ID)
	require.Len(t, dash.Referrals[0].SubReferrals, 1)
	assert.Equal(t, int64(4), dash.Referrals[0].SubReferrals[0].ID)
	assert.Equal(t, 1, dash.Referrals[0].ReferralsCount)
	assert.NotNil(t, dash.Referrals[1].SubReferrals)
	assert.Empty(t, dash.Referrals[1].SubReferrals)
}

func TestBuildDashboard_DeepChain(t *testing.T) {
	repo := db.NewMemoryRepository()
	const n = 2000
	people := make([]models.Person, 0, n)
	for i := int64(1); i <= n; i++ {
		people = append(people, seedPerson(i, i-1, time.Duration(i)*time.Second))
	}
	repo.Seed(people...)
	svc := newNetworkService(repo, tree.DefaultLimits)

	dash, err := svc.BuildDashboard(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, n-1, dash.NetworkSize)

	depth := 0
	for level := dash.Referrals; len(level) > 0; level = level[0].SubReferrals {
		depth++
	}
	assert.Equal(t, n-1, depth)
}

func TestSummaryAndInspect(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.DefaultLimits)
	ctx := context.Background()

	direct, size, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, direct)
	assert.Equal(t, 3, size)

	stats, err := svc.Inspect(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 2, stats.Depth)
	assert.Equal(t, 3, stats.Rounds)
	assert.Equal(t, 0, stats.Anomalies)

	ids, err := svc.SubtreeIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids)
}

func TestIsDescendant(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.DefaultLimits)
	ctx := context.Background()

	check, err := svc.IsDescendant(ctx, 1, 4)
	require.NoError(t, err)
	assert.True(t, check.IsDescendant)

	check, err = svc.IsDescendant(ctx, 2, 4)
	require.NoError(t, err)
	assert.False(t, check.IsDescendant)

	check, err = svc.IsDescendant(ctx, 4, 1)
	require.NoError(t, err)
	assert.False(t, check.IsDescendant)
}

func TestNetworkRoots(t *testing.T) {
	repo := scenarioRepo()
	repo.Seed(seedPerson(10, 0, time.Hour), seedPerson(11, 10, 2*time.Hour))
	svc := NewNetworkService(repo, repo, NetworkOptions{Limits: tree.DefaultLimits, Concurrency: 2}, zap.NewNop())

	roots, err := svc.NetworkRoots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 2)

	assert.Equal(t, int64(10), roots[0].ID)
	assert.Equal(t, 1, roots[0].TotalNetworkSize)
	assert.Equal(t, int64(1), roots[1].ID)
	assert.Equal(t, 2, roots[1].DirectReferrals)
	assert.Equal(t, 3, roots[1].TotalNetworkSize)
	assert.Equal(t, "Red de Nombre1 Apellido1", roots[1].NetworkName)
}

func TestNetworkRoots_OversizedNetworkIsFlagged(t *testing.T) {
	repo := scenarioRepo()
	repo.Seed(seedPerson(10, 0, time.Hour))
	// root 1 has 4 nodes, root 10 only itself
	svc := NewNetworkService(repo, repo, NetworkOptions{Limits: tree.Limits{MaxNodes: 2}}, zap.NewNop())

	roots, err := svc.NetworkRoots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 2)

	assert.Equal(t, int64(10), roots[0].ID)
	assert.False(t, roots[0].SizeLimitExceeded)
	assert.Equal(t, 0, roots[0].TotalNetworkSize)
	assert.Equal(t, int64(1), roots[1].ID)
	assert.True(t, roots[1].SizeLimitExceeded)
	assert.Equal(t, 0, roots[1].TotalNetworkSize)
}

func TestLevelLabels(t *testing.T) {
	svc := newNetworkService(scenarioRepo(), tree.DefaultLimits)
	ctx := context.Background()

	_, err := svc.SetLevelLabel(ctx, 1, -1, "Sponsor")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.SetLevelLabel(ctx, 1, 1, "   ")
	assert.ErrorIs(t, err, ErrInvalid)

	label, err := svc.SetLevelLabel(ctx, 1, 1, " Líderes ")
	require.NoError(t, err)
	assert.Equal(t, "Líderes", label.Name)

	labels, err := svc.ListLevelLabels(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, labels, 1)

	require.NoError(t, svc.DeleteLevelLabel(ctx, 1, 1))
	assert.ErrorIs(t, svc.DeleteLevelLabel(ctx, 1, 1), ErrNotFound)
}
