package store

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// snapshotFile is the import format. A file either lists several snapshots
// under "snapshots" or is a single snapshot document.
type snapshotFile struct {
	Snapshots []models.Snapshot `yaml:"snapshots"`
}

// LoadSnapshotFile reads ledger snapshots from a YAML file.
func LoadSnapshotFile(path string) ([]models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	return ParseSnapshots(data)
}

// ParseSnapshots decodes YAML snapshot data and checks every mode and owner.
func ParseSnapshots(data []byte) ([]models.Snapshot, error) {
	var file snapshotFile
	if err := decodeStrict(data, &file); err != nil || len(file.Snapshots) == 0 {
		var single models.Snapshot
		if serr := decodeStrict(data, &single); serr != nil {
			if err == nil {
				err = serr
			}
			return nil, errors.Wrap(errors.ErrInputValidation, fmt.Sprintf("decoding snapshot: %v", err))
		}
		file.Snapshots = []models.Snapshot{single}
	}

	for i := range file.Snapshots {
		snap := &file.Snapshots[i]
		mode, err := models.ParseGameMode(string(snap.Mode))
		if err != nil {
			return nil, errors.NewValidationError("mode", snap.Mode, err.Error())
		}
		snap.Mode = mode
		if snap.Account.Owner == "" {
			return nil, errors.NewValidationError("account.owner", "", "owner is required")
		}
	}
	return file.Snapshots, nil
}

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
