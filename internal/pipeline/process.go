package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"polecheck/internal"
	"polecheck/internal/config"
	"polecheck/internal/storage"
)

const artifactPrefix = "pole_data_"

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
	now func() time.Time
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, now: time.Now}
}

type ProcessResult struct {
	CSVFilename  string
	XLSXFilename string
	Summary      internal.Summary
}

// ProcessDocument runs one map document through parse, normalize and export.
// The raw upload is kept in the uploads directory until the sweeper expires it.
func (s *ProcessingService) ProcessDocument(source internal.ArtifactSource, filename string, content []byte) (ProcessResult, error) {
	return s.processDocument(source, filename, content, nil)
}

func (s *ProcessingService) processDocument(source internal.ArtifactSource, filename string, content []byte, emailID *int) (ProcessResult, error) {
	kind, ok := DetectDocumentKind(filename, content)
	if !ok {
		return ProcessResult{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, filename)
	}

	id := uuid.NewString()
	uploadPath := filepath.Join(s.cfg.UploadsDir, "upload_"+id+"."+string(kind))
	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		return ProcessResult{}, err
	}
	if err := os.WriteFile(uploadPath, content, 0o644); err != nil {
		return ProcessResult{}, err
	}

	records, err := ExtractRecords(kind, content)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.exportRecords(id, source, filename, records, emailID)
}

func (s *ProcessingService) exportRecords(id string, source internal.ArtifactSource, originalName string, records []internal.RawRecord, emailID *int) (ProcessResult, error) {
	dataset, summary, err := Normalize(records)
	if err != nil {
		return ProcessResult{}, err
	}

	csvFilename := artifactPrefix + id + ".csv"
	xlsxFilename := artifactPrefix + id + ".xlsx"
	csvPath := filepath.Join(s.cfg.ProcessedDir, csvFilename)
	xlsxPath := filepath.Join(s.cfg.ProcessedDir, xlsxFilename)

	if err := ExportToCSV(dataset, csvPath); err != nil {
		return ProcessResult{}, err
	}
	if err := ExportToXLSX(dataset, xlsxPath); err != nil {
		return ProcessResult{}, err
	}

	row := internal.ArtifactRow{
		Filename:       csvFilename,
		Path:           csvPath,
		XLSXPath:       xlsxPath,
		Source:         string(source),
		OriginalName:   originalName,
		TotalRecords:   summary.TotalRecords,
		DuplicateCount: summary.DuplicateCount,
	}
	if _, err := s.db.InsertArtifact(row, emailID, s.now()); err != nil {
		return ProcessResult{}, err
	}

	return ProcessResult{CSVFilename: csvFilename, XLSXFilename: xlsxFilename, Summary: summary}, nil
}

// IsArtifactFilename reports whether name looks like something this service
// produced with the given extension.
func IsArtifactFilename(name, ext string) bool {
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return false
	}
	return strings.HasPrefix(name, artifactPrefix) && strings.HasSuffix(name, ext) && len(name) > len(artifactPrefix)+len(ext)
}

func (s *ProcessingService) ArtifactPath(name string) string {
	return filepath.Join(s.cfg.ProcessedDir, name)
}

type EmailResult struct {
	EmailID   int
	Status    string
	Artifacts []ProcessResult
	Failures  []string
}

func (s *ProcessingService) ProcessByProviderMessageID(provider, messageID string) (EmailResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return EmailResult{}, err
	}
	return s.ProcessEmail(email)
}

func (s *ProcessingService) ProcessPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	artifacts := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(email)
		if err != nil {
			return processedEmails, artifacts, err
		}
		processedEmails++
		artifacts += len(res.Artifacts)
	}
	return processedEmails, artifacts, nil
}

// ProcessEmail processes every map document attached to a stored email, and a
// pole table in its HTML body. Document-level failures are recorded on the
// result and mark the email failed only when nothing succeeded.
func (s *ProcessingService) ProcessEmail(email internal.EmailRow) (EmailResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return EmailResult{}, err
	}

	docs, bodyRecords, _, err := ExtractDocumentsFromEmailRaw(raw)
	if err != nil {
		return EmailResult{}, err
	}

	result := EmailResult{EmailID: email.ID}
	emailID := email.ID
	for _, doc := range docs {
		res, err := s.processDocument(internal.SourceMail, doc.Filename, doc.Content, &emailID)
		if err != nil {
			if isDocumentError(err) {
				result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", doc.Filename, err))
				continue
			}
			return result, err
		}
		result.Artifacts = append(result.Artifacts, res)
	}
	if len(bodyRecords) > 0 {
		res, err := s.exportRecords(uuid.NewString(), internal.SourceMail, "message body", bodyRecords, &emailID)
		if err != nil {
			return result, err
		}
		result.Artifacts = append(result.Artifacts, res)
	}

	switch {
	case len(result.Artifacts) > 0:
		result.Status = "processed"
	case len(result.Failures) > 0:
		result.Status = "failed"
	default:
		result.Status = "skipped"
	}
	if err := s.db.UpdateEmailStatus(email.ID, result.Status); err != nil {
		return result, err
	}
	return result, nil
}

func isDocumentError(err error) bool {
	return errors.Is(err, ErrNoRecords) || errors.Is(err, ErrMalformedDocument) || errors.Is(err, ErrUnsupportedDocument)
}
