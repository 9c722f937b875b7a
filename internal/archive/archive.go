// internal/archive/archive.go

// Package archive indexes finished audit runs into Elasticsearch so results
// stay queryable after the run's JSON files rotate away.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"credit-audit/internal/common/database"
	"credit-audit/internal/common/errors"
	"credit-audit/internal/common/logger"
)

// Document is one archived run.
type Document struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Results    map[string]interface{} `json:"results"`
}

// Archive writes run documents to an Elasticsearch index.
type Archive struct {
	es    *database.ElasticsearchClient
	index string
	log   logger.Logger
}

func New(es *database.ElasticsearchClient, index string, log logger.Logger) *Archive {
	return &Archive{es: es, index: index, log: log}
}

// Store indexes one run document under its run ID.
func (a *Archive) Store(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewArchiveWriteError("encode run document", err)
	}

	res, err := a.es.Client.Index(
		a.index,
		bytes.NewReader(body),
		a.es.Client.Index.WithDocumentID(doc.RunID),
		a.es.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.NewArchiveWriteError("index run document", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewArchiveWriteError(fmt.Sprintf("index returned %s", res.Status()), nil)
	}

	a.log.Info("Archived audit run", map[string]interface{}{
		"run_id": doc.RunID,
		"index":  a.index,
	})
	return nil
}
