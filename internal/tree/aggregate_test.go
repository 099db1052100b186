package tree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSizes_Scenario(t *testing.T) {
	children := map[int64][]int64{1: {2, 3}, 2: {}, 3: {4}, 4: {}}

	sizes := ComputeSizes(children)

	assert.Equal(t, map[int64]int{1: 3, 2: 0, 3: 1, 4: 0}, sizes)
	assert.Equal(t, 2, DirectChildrenCount(children, 1))
	assert.Equal(t, 0, DirectChildrenCount(children, 4))
	assert.Equal(t, 0, DirectChildrenCount(children, 99))
}

func TestComputeSizes_ChildrenOnlyReferencedAsValues(t *testing.T) {
	sizes := ComputeSizes(map[int64][]int64{1: {2, 3}})

	assert.Equal(t, 2, sizes[1])
	assert.Equal(t, 0, sizes[2])
	assert.Equal(t, 0, sizes[3])
}

func TestComputeSizes_DeepChainDoesNotRecurse(t *testing.T) {
	const n = 200000
	sizes := ComputeSizes(chainChildren(n))

	assert.Equal(t, n-1, sizes[1])
	assert.Equal(t, 0, sizes[n])
	assert.Equal(t, n/2, sizes[int64(n/2)])
}

func TestComputeSizes_CyclicAdjacencyTerminates(t *testing.T) {
	sizes := ComputeSizes(map[int64][]int64{1: {2}, 2: {1}})

	assert.Len(t, sizes, 2)
}

func TestComputeSizes_RandomForestInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 25; trial++ {
		n := 1 + rng.Intn(400)
		children := make(map[int64][]int64, n)
		for id := int64(1); id <= int64(n); id++ {
			children[id] = []int64{}
			// roughly one in ten nodes founds a new tree
			if id > 1 && rng.Intn(10) != 0 {
				parent := int64(1 + rng.Intn(int(id-1)))
				children[parent] = append(children[parent], id)
			}
		}

		sizes := ComputeSizes(children)
		require.Len(t, sizes, n)

		for id, kids := range children {
			want := 0
			for _, c := range kids {
				want += sizes[c] + 1
			}
			assert.Equal(t, want, sizes[id], "trial %d node %d", trial, id)
			if len(kids) == 0 {
				assert.Equal(t, 0, sizes[id])
			}
		}
	}
}
