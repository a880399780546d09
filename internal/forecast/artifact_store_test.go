package forecast

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agroprophet/agroprophet/internal/model"
)

func testArtifact(region string) *Artifact {
	return &Artifact{
		Region:   region,
		CropType: model.CropTypeFruit,
		Lags:     numLags,
		Coefficients: [][]float64{
			{0, 1, 0, 0, 0},
			{0, 0, 1, 0, 0},
			{0, 0, 0, 1, 0},
			{0, 0, 0, 0, 1},
		},
		TrainedAt: time.Now().UTC(),
		Samples:   10,
	}
}

func TestArtifactStore_SaveLoadRoundTrip(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(testArtifact("Valhalla")))

	loaded, err := s.Load("Valhalla", model.CropTypeFruit)
	require.NoError(t, err)
	assert.Equal(t, "Valhalla", loaded.Region)
	assert.Equal(t, numLags, loaded.Lags)
	assert.Len(t, loaded.Coefficients, numLeads)
}

func TestArtifactStore_LoadMissing(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load("Nowhere", model.CropTypeVegetable)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrArtifactNotFound))
}

func TestArtifactStore_SaveReplaces(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	first := testArtifact("Valhalla")
	first.Samples = 1
	require.NoError(t, s.Save(first))

	second := testArtifact("Valhalla")
	second.Samples = 2
	require.NoError(t, s.Save(second))

	loaded, err := s.Load("Valhalla", model.CropTypeFruit)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Samples)
}

func TestArtifactStore_SpacesInRegion(t *testing.T) {
	s, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)

	a := testArtifact("New Asgard")
	require.NoError(t, s.Save(a))
	assert.True(t, s.Exists("New Asgard", model.CropTypeFruit))

	loaded, err := s.Load("New Asgard", model.CropTypeFruit)
	require.NoError(t, err)
	assert.Equal(t, "New Asgard", loaded.Region)
}
