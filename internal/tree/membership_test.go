package tree

import (
	"context"
	"testing"
	"time"

	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsDescendant_Scenario(t *testing.T) {
	checker := NewChecker(scenarioSource(), DefaultLimits, zap.NewNop())
	ctx := context.Background()

	cases := []struct {
		name      string
		ancestor  int64
		candidate int64
		want      bool
	}{
		{"self", 1, 1, true},
		{"grandchild", 1, 4, true},
		{"direct child", 3, 4, true},
		{"sibling branch", 2, 4, false},
		{"upwards", 4, 1, false},
		{"unknown candidate", 1, 42, false},
		{"unknown ancestor", 42, 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := checker.IsDescendant(ctx, tc.ancestor, tc.candidate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsDescendant_SelfNeedsNoStorage(t *testing.T) {
	src := scenarioSource()
	checker := NewChecker(src, DefaultLimits, zap.NewNop())

	ok, err := checker.IsDescendant(context.Background(), 3, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, src.childCalls)
}

func TestIsDescendant_ShortCircuits(t *testing.T) {
	src := scenarioSource()
	checker := NewChecker(src, DefaultLimits, zap.NewNop())

	ok, err := checker.IsDescendant(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, src.childCalls)
}

func TestIsDescendant_SeesNewReferrals(t *testing.T) {
	src := scenarioSource()
	checker := NewChecker(src, DefaultLimits, zap.NewNop())
	ctx := context.Background()

	ok, err := checker.IsDescendant(ctx, 2, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	src.people = append(src.people, person(5, 2, 10*time.Minute))

	ok, err = checker.IsDescendant(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsDescendant_CycleTerminates(t *testing.T) {
	src := &fakeSource{people: []models.Person{
		person(1, 3, 0),
		person(2, 1, time.Minute),
		person(3, 2, 2*time.Minute),
	}}
	checker := NewChecker(src, DefaultLimits, zap.NewNop())

	ok, err := checker.IsDescendant(context.Background(), 1, 77)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsDescendant_DepthLimit(t *testing.T) {
	checker := NewChecker(scenarioSource(), Limits{MaxDepth: 1}, zap.NewNop())

	_, err := checker.IsDescendant(context.Background(), 1, 42)
	assert.ErrorIs(t, err, ErrSizeLimitExceeded)
}
