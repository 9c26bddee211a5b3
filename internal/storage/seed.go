package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/attachdrop/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout for pre-existing attachments.
//
//	attachments:
//	  - file_name: handbook.pdf
//	    file_url: https://example.com/handbook.pdf
//	    file_type: pdf
//	    uploaded_by: bob
type SeedFile struct {
	Attachments []models.FileDescriptor `yaml:"attachments"`
}

// ParseSeed reads seed records from r. Unknown file types, "link" included,
// become documents; the gallery renders those links as link tiles.
// Seeded records are rendered as given; the upload size ceiling does not
// apply to them.
func ParseSeed(r io.Reader) ([]models.FileDescriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}

	out := make([]models.FileDescriptor, 0, len(seed.Attachments))
	for i, d := range seed.Attachments {
		d.SemanticType = models.ParseSemanticType(string(d.SemanticType))
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("seed attachment %d (%s): %w", i, d.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// LoadSeed adds every record of the YAML file at path to store and returns
// how many were added. A missing file is not an error.
func LoadSeed(store Store, path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	records, err := ParseSeed(f)
	if err != nil {
		return 0, err
	}

	for _, d := range records {
		if _, err := store.Add(d); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}
