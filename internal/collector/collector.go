// internal/collector/collector.go

// Package collector persists every (module, input, output) oracle exchange
// so a finished audit run can be re-analyzed without replaying calls.
package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"credit-audit/internal/common/errors"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/models"
)

// Record is one collected oracle exchange.
type Record struct {
	Module string                 `json:"module"`
	Input  models.Profile         `json:"input"`
	Output map[string]interface{} `json:"output"`
}

// Sink receives oracle exchanges as they happen. Implementations must be
// safe for concurrent Append calls.
type Sink interface {
	Append(module string, input models.Profile, result *models.OracleResult) error
	Close() error
}

// FileSink appends records to a JSON-lines file, one object per line.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	log  logger.Logger
}

// NewFileSink opens (or creates) the run's response file under dir. The
// filename carries the run ID and a timestamp so repeated runs never clobber
// each other.
func NewFileSink(dir, runID string, log logger.Logger) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewCollectorWriteError(fmt.Sprintf("create response dir %s", dir), err)
	}
	name := fmt.Sprintf("responses_%s_%s.jsonl", runID, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.NewCollectorWriteError(fmt.Sprintf("open response file %s", path), err)
	}

	log.Info("Response collector started", map[string]interface{}{
		"path": path,
	})
	return &FileSink{file: f, enc: json.NewEncoder(f), log: log}, nil
}

// Path returns the backing file's path.
func (s *FileSink) Path() string {
	return s.file.Name()
}

func (s *FileSink) Append(module string, input models.Profile, result *models.OracleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{Module: module, Input: input, Output: result.ToMap()}
	if err := s.enc.Encode(rec); err != nil {
		s.log.Error("Failed to append oracle response", map[string]interface{}{
			"module": module,
			"error":  err.Error(),
		})
		return errors.NewCollectorWriteError("append record", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// MemorySink buffers records in memory, used by tests and by the archive
// layer when a run should be indexed wholesale.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(module string, input models.Profile, result *models.OracleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{Module: module, Input: input, Output: result.ToMap()})
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Records returns a snapshot of everything collected so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// LoadFile reads a previously written JSON-lines response file back into
// records. Blank lines are skipped; a malformed line aborts with its number.
func LoadFile(path string) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewCollectorWriteError(fmt.Sprintf("read response file %s", path), err)
	}

	var records []Record
	start := 0
	line := 0
	for i := 0; i <= len(raw); i++ {
		if i != len(raw) && raw[i] != '\n' {
			continue
		}
		chunk := raw[start:i]
		start = i + 1
		line++
		if len(chunk) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(chunk, &rec); err != nil {
			return nil, errors.NewCollectorWriteError(fmt.Sprintf("parse line %d of %s", line, path), err)
		}
		records = append(records, rec)
	}
	return records, nil
}
