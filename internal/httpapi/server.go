package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polecheck/internal"
	"polecheck/internal/config"
	"polecheck/internal/pipeline"
)

const serviceName = "KML Pole Number Extractor"

const (
	csvDownloadName  = "pole_data_processed.csv"
	xlsxDownloadName = "pole_data_processed.xlsx"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Server struct {
	cfg  config.Config
	proc *pipeline.ProcessingService
	mux  *http.ServeMux
}

func New(cfg config.Config, proc *pipeline.ProcessingService) *Server {
	s := &Server{cfg: cfg, proc: proc, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /upload-kml/{$}", s.handleUpload)
	s.mux.HandleFunc("GET /download-csv/{filename}", s.handleDownload(".csv", csvDownloadName, "text/csv; charset=utf-8"))
	s.mux.HandleFunc("GET /download-xlsx/{filename}", s.handleDownload(".xlsx", xlsxDownloadName, xlsxContentType))
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	return withCORS(s.cfg.AllowedOrigins, s.mux)
}

// HTTPServer builds the listening server for cfg.Addr().
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type uploadResponse struct {
	Message           string           `json:"message"`
	CSVFilename       string           `json:"csv_filename"`
	XLSXFilename      string           `json:"xlsx_filename"`
	ProcessingResults internal.Summary `json:"processing_results"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPageTemplate.Execute(w, map[string]any{
		"title":         serviceName + " API",
		"frontend_url":  s.cfg.FrontendURL,
		"uploads_dir":   s.cfg.UploadsDir,
		"processed_dir": s.cfg.ProcessedDir,
		"ttl_min":       s.cfg.FileTTLMin,
		"max_upload_mb": s.cfg.MaxUploadMB,
	}); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d MB limit", s.cfg.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".kml" && ext != ".kmz" {
		writeError(w, http.StatusBadRequest, "File must be a KML file (.kml or .kmz extension)")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	res, err := s.proc.ProcessDocument(internal.SourceUpload, header.Filename, content)
	switch {
	case errors.Is(err, pipeline.ErrNoRecords):
		writeError(w, http.StatusBadRequest, "No valid placemarks found in KML file")
		return
	case errors.Is(err, pipeline.ErrMalformedDocument):
		writeError(w, http.StatusBadRequest, "Error parsing KML: "+err.Error())
		return
	case err != nil:
		log.Printf("upload error file=%q: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "Error processing file: "+err.Error())
		return
	}

	log.Printf("upload processed file=%q csv=%s total=%d duplicates=%d",
		header.Filename, res.CSVFilename, res.Summary.TotalRecords, res.Summary.DuplicateCount)
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:           "File processed successfully",
		CSVFilename:       res.CSVFilename,
		XLSXFilename:      res.XLSXFilename,
		ProcessingResults: res.Summary,
	})
}

func (s *Server) handleDownload(ext, downloadName, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("filename")
		if !pipeline.IsArtifactFilename(name, ext) {
			writeError(w, http.StatusBadRequest, "Invalid filename")
			return
		}

		f, err := os.Open(s.proc.ArtifactPath(name))
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		if err != nil {
			log.Printf("download error file=%s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, downloadName))
		http.ServeContent(w, r, downloadName, info.ModTime(), f)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

var indexPageTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{ .title }}</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 40px; line-height: 1.6; }
    .container { max-width: 800px; margin: 0 auto; }
    h1 { color: #333; }
    .card { background: #f9f9f9; padding: 20px; border-radius: 8px; margin: 20px 0; }
    .endpoint { background: #e8f4f8; padding: 10px; margin: 10px 0; border-left: 4px solid #2196F3; }
    code { background: #f5f5f5; padding: 2px 4px; border-radius: 3px; }
    a { color: #2196F3; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <h1>{{ .title }}</h1>
    <p>Backend for processing KML files and extracting pole numbers.</p>

    <div class="card" id="endpoints">
      <h2>API Endpoints</h2>
      <div class="endpoint"><strong>GET /health</strong> - Health check</div>
      <div class="endpoint"><strong>POST /upload-kml/</strong> - Upload and process a .kml or .kmz file (max {{ .max_upload_mb }} MB)</div>
      <div class="endpoint"><strong>GET /download-csv/{filename}</strong> - Download processed CSV</div>
      <div class="endpoint"><strong>GET /download-xlsx/{filename}</strong> - Download processed workbook</div>
    </div>

    {{ if .frontend_url }}
    <div class="card" id="frontend">
      <h2>Frontend</h2>
      <p><a href="{{ .frontend_url }}" target="_blank">{{ .frontend_url }}</a></p>
    </div>
    {{ end }}

    <div class="card" id="status">
      <h2>Status</h2>
      <p>API is running and ready to process requests.</p>
      <p>Uploads directory: <code>{{ .uploads_dir }}</code></p>
      <p>Processed directory: <code>{{ .processed_dir }}</code></p>
      <p>Files are removed after {{ .ttl_min }} minutes.</p>
    </div>
  </div>
</body>
</html>
`))
