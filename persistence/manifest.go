package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// Manifest describes the codec parameters stored in an artifact directory.
// It is the fourth artifact beside centroids, buckets and avg_residual.
type Manifest struct {
	Version     int    `json:"version"`
	Dim         int    `json:"dim"`
	NBits       int    `json:"nbits"`
	Centroids   int    `json:"centroids"`
	Compression string `json:"compression"`
}

// SaveManifest writes the manifest atomically into dir.
func SaveManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(dir, ManifestFileName), append(data, '\n'))
}

// LoadManifest reads and validates the manifest from dir.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, ManifestFileName)
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFileName, err)
	}

	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: manifest version %d", ErrInvalidVersion, m.Version)
	}
	if m.Dim <= 0 || m.NBits <= 0 || m.Centroids <= 0 {
		return nil, fmt.Errorf("%w: manifest dim=%d nbits=%d centroids=%d",
			ErrArtifactShape, m.Dim, m.NBits, m.Centroids)
	}

	return &m, nil
}
