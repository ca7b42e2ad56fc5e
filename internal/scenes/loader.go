package scenes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrUnsupportedVersion is returned for databases whose version is not 1.
var ErrUnsupportedVersion = errors.New("unsupported adventure database version")

// ParseDatabase decodes and validates an adventure database.
func ParseDatabase(data []byte) (*Database, error) {
	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse adventure database JSON: %w", err)
	}

	if db.Version != 1 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, db.Version)
	}

	seen := make(map[string]struct{}, len(db.Scenes))
	for i, s := range db.Scenes {
		if s.ID == "" {
			return nil, fmt.Errorf("scene[%d]: id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("scene[%d]: duplicate id %s", i, s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	return &db, nil
}

// LoadDatabaseFile loads an adventure database from a JSON file.
func LoadDatabaseFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read adventure database file: %w", err)
	}
	return ParseDatabase(data)
}
