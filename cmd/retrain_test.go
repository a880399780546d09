//go:build !integration

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrainCmd_Metadata(t *testing.T) {
	assert.Equal(t, "retrain", retrainCmd.Use)
	assert.NotEmpty(t, retrainCmd.Short)

	require.NotNil(t, retrainCmd.Flags().Lookup("region"))
	require.NotNil(t, retrainCmd.Flags().Lookup("crop"))
}

func TestRetrainCmd_UnknownCrop(t *testing.T) {
	cfg = memConfig(t)

	retrainCmd.SetContext(context.Background())
	defer retrainCmd.SetContext(context.TODO())

	oldRegion, oldCrop := retrainRegion, retrainCrop
	retrainRegion, retrainCrop = "Valhalla", "Moon Cheese"
	defer func() { retrainRegion, retrainCrop = oldRegion, oldCrop }()

	err := retrainCmd.RunE(retrainCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrain")
}

func TestRetrainCmd_MissingArtifact(t *testing.T) {
	cfg = memConfig(t)

	retrainCmd.SetContext(context.Background())
	defer retrainCmd.SetContext(context.TODO())

	oldRegion, oldCrop := retrainRegion, retrainCrop
	retrainRegion, retrainCrop = "Valhalla", "Cantaloupe"
	defer func() { retrainRegion, retrainCrop = oldRegion, oldCrop }()

	// No deployed artifact for the scope; the synchronous re-fit refuses
	// to bootstrap one.
	err := retrainCmd.RunE(retrainCmd, nil)
	require.Error(t, err)
}
