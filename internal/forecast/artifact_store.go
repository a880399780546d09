package forecast

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
)

// ErrArtifactNotFound is returned when no model has been deployed for a
// (region, crop type) scope.
var ErrArtifactNotFound = eris.New("forecast: model artifact not found")

// ArtifactStore persists model artifacts as one JSON file per
// (region, crop type). Saves go through a temp file and rename so the
// prediction path never observes a partially written artifact.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates an artifact store rooted at dir, creating
// it if needed.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "forecast: create artifact dir %s", dir)
	}
	return &ArtifactStore{dir: dir}, nil
}

func artifactFilename(region string, cropType model.CropType) string {
	return strings.ReplaceAll(region+"__"+string(cropType), " ", "_") + ".json"
}

// Load reads the deployed artifact for a scope.
func (s *ArtifactStore) Load(region string, cropType model.CropType) (*Artifact, error) {
	path := filepath.Join(s.dir, artifactFilename(region, cropType))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrArtifactNotFound, "%s/%s", region, cropType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: read artifact %s", path)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrapf(err, "forecast: parse artifact %s", path)
	}
	return &a, nil
}

// Exists reports whether an artifact is deployed for a scope.
func (s *ArtifactStore) Exists(region string, cropType model.CropType) bool {
	_, err := os.Stat(filepath.Join(s.dir, artifactFilename(region, cropType)))
	return err == nil
}

// Save atomically replaces the deployed artifact for the scope.
func (s *ArtifactStore) Save(a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return eris.Wrap(err, "forecast: marshal artifact")
	}

	final := filepath.Join(s.dir, artifactFilename(a.Region, a.CropType))
	tmp, err := os.CreateTemp(s.dir, ".artifact-*.json")
	if err != nil {
		return eris.Wrap(err, "forecast: create temp artifact")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "forecast: write temp artifact")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "forecast: close temp artifact")
	}
	return eris.Wrapf(os.Rename(tmpName, final), "forecast: deploy artifact %s", final)
}
