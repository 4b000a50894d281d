package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

var csvHeader = []string{
	"id", "title", "company", "location", "salary", "url", "source",
	"posted_at", "fetched_at", "hours_since_posted",
}

type fileDocument struct {
	LastUpdated time.Time                `json:"last_updated"`
	TotalJobs   int                      `json:"total_jobs"`
	Jobs        []models.CanonicalRecord `json:"jobs"`
}

// FileStore keeps state in a JSON document and mirrors every save to a
// CSV export. Both files are replaced atomically.
type FileStore struct {
	jsonPath string
	csvPath  string
	logger   *zap.Logger
	now      func() time.Time
}

// NewFileStore returns a FileStore. An empty csvPath disables the export.
func NewFileStore(jsonPath, csvPath string, logger *zap.Logger) *FileStore {
	return &FileStore{
		jsonPath: jsonPath,
		csvPath:  csvPath,
		logger:   logger.Named("file_store"),
		now:      time.Now,
	}
}

func (s *FileStore) Load(ctx context.Context) ([]models.CanonicalRecord, error) {
	_, span := tracer.Start(ctx, "FileStore.Load")
	defer span.End()

	data, err := os.ReadFile(s.jsonPath)
	if os.IsNotExist(err) {
		s.logger.Info("no existing store, starting empty", zap.String("path", s.jsonPath))
		return []models.CanonicalRecord{}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("reading store", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		span.RecordError(err)
		return nil, errors.Internal("decoding store "+s.jsonPath, err)
	}
	if doc.Jobs == nil {
		doc.Jobs = []models.CanonicalRecord{}
	}
	span.SetAttributes(telemetry.Int("records.count", len(doc.Jobs)))
	return doc.Jobs, nil
}

func (s *FileStore) Save(ctx context.Context, records []models.CanonicalRecord) error {
	_, span := tracer.Start(ctx, "FileStore.Save")
	defer span.End()
	span.SetAttributes(telemetry.Int("records.count", len(records)))

	if records == nil {
		records = []models.CanonicalRecord{}
	}
	doc := fileDocument{
		LastUpdated: s.now().UTC(),
		TotalJobs:   len(records),
		Jobs:        records,
	}

	if err := writeAtomic(s.jsonPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}); err != nil {
		span.RecordError(err)
		return errors.Unavailable("writing store", err)
	}

	if s.csvPath != "" {
		if err := writeAtomic(s.csvPath, func(w io.Writer) error {
			return WriteCSV(w, records)
		}); err != nil {
			span.RecordError(err)
			return errors.Unavailable("writing csv export", err)
		}
	}

	s.logger.Info("saved records",
		zap.Int("count", len(records)),
		zap.String("json_path", s.jsonPath),
		zap.String("csv_path", s.csvPath))
	return nil
}

// WriteCSV writes records with a header row, every field quoted.
func WriteCSV(w io.Writer, records []models.CanonicalRecord) error {
	bw := bufio.NewWriter(w)
	if err := writeCSVRow(bw, csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.ID, r.Title, r.Company, r.Location, r.Salary, r.URL, r.Source,
			formatTime(r.PostedAt), r.FetchedAt.UTC().Format(time.RFC3339),
			formatHours(r.HoursSincePosted),
		}
		if err := writeCSVRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeCSVRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatHours(h *float64) string {
	if h == nil {
		return ""
	}
	return strconv.FormatFloat(*h, 'f', 1, 64)
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
