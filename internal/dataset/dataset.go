// internal/dataset/dataset.go

// Package dataset loads the applicant profiles an audit run iterates over,
// from either a CSV file or a PostgreSQL table.
package dataset

import (
	"context"
	"strconv"

	"credit-audit/internal/common/config"
	"credit-audit/internal/common/errors"
	"credit-audit/internal/models"
)

// Source yields the full set of applicant profiles for a run.
type Source interface {
	Load(ctx context.Context) ([]models.Profile, error)
}

// coerce turns a raw cell value into the richest type the profile layer
// understands: float64 when the text parses as a number, bool for the
// canonical spellings, otherwise the string as-is. Empty cells become nil.
func coerce(raw string) interface{} {
	if raw == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true", "True":
		return true
	case "false", "False":
		return false
	}
	return raw
}

// NewSource builds the configured source. The postgres variant needs an
// open connection from the caller; csv needs only the configured path.
func NewSource(cfg config.DatasetConfig, pg PostgresQuerier) (Source, error) {
	switch cfg.Source {
	case "csv":
		return NewCSVSource(cfg.Path), nil
	case "postgres":
		if pg == nil {
			return nil, errors.NewDatasetLoadError("postgres source configured without a database connection")
		}
		return NewPostgresSource(pg, cfg.Table), nil
	}
	return nil, errors.NewDatasetLoadError("unknown dataset source: " + cfg.Source)
}
