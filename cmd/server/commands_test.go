package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLocationSeed_BundledFile(t *testing.T) {
	seed, err := readLocationSeed(filepath.Join("..", "..", "configs", "locations.yaml"))
	require.NoError(t, err)
	require.Len(t, seed.Departments, 1)
	assert.Equal(t, "Antioquia", seed.Departments[0].Name)
	assert.Len(t, seed.Departments[0].Municipalities, 125)
	assert.Contains(t, seed.Departments[0].Municipalities, "Medellín")
}

func TestReadLocationSeed_Errors(t *testing.T) {
	_, err := readLocationSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("departments: [name: {"), 0o600))
	_, err = readLocationSeed(bad)
	assert.Error(t, err)
}
