// internal/dataset/csv.go
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"credit-audit/internal/common/errors"
	"credit-audit/internal/models"
)

// CSVSource reads profiles from a headered CSV file. Cell values are
// type-coerced: numeric text becomes float64, true/false become bool, empty
// cells become nil.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Load(ctx context.Context) ([]models.Profile, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("open %s: %v", s.path, err))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("read header of %s: %v", s.path, err))
	}

	var profiles []models.Profile
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewDatasetLoadError(fmt.Sprintf("load cancelled: %v", err))
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewDatasetLoadError(fmt.Sprintf("read %s: %v", s.path, err))
		}

		p := make(models.Profile, len(header))
		for i, col := range header {
			if i >= len(row) {
				break
			}
			p[col] = coerce(row[i])
		}
		profiles = append(profiles, p)
	}

	if len(profiles) == 0 {
		return nil, errors.NewDatasetLoadError(fmt.Sprintf("%s contains no profiles", s.path))
	}
	return profiles, nil
}
