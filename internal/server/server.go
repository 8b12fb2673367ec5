package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/files"
	"github.com/pavel-fokin/file-converter/internal/metrics"
)

// Multipart parts above this size are spooled to disk by net/http.
const multipartMemory = 8 << 20

// Slack on top of the upload cap for multipart framing.
const multipartOverhead = 1 << 20

// Config holds the transport settings.
type Config struct {
	Addr          string
	MaxUploadSize int64
	CORSOrigins   []string
}

// New builds the HTTP server. m and gatherer may be nil.
func New(cfg *Config, fileService *files.Service, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("POST /upload", uploadFile(cfg, fileService, logger))
	mux.HandleFunc("POST /convert", convertFile(fileService, logger))
	mux.HandleFunc("GET /download/{filename}", downloadFile(fileService, logger))
	mux.HandleFunc("GET /formats/{format}", supportedFormats(fileService))
	mux.HandleFunc("GET /conversions", listConversions(fileService, logger))
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	handler := limitBody(mux, cfg.MaxUploadSize+multipartOverhead)
	handler = recovery(logger)(handler)
	handler = loggingMiddleware(logger, m)(handler)
	handler = requestID(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
	}).Handler(handler)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads and downloads of large media are bounded by the body limit,
		// not by a write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func uploadFile(cfg *Config, fileService *files.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, r, logger, fmt.Errorf("upload exceeds %d bytes: %w", cfg.MaxUploadSize, convert.ErrTooLarge))
				return
			}
			respondError(w, r, logger, &convert.ValidationError{Field: "file", Message: "no file part"})
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, logger, &convert.ValidationError{Field: "file", Message: "no file part"})
			return
		}
		defer file.Close()

		if header.Filename == "" {
			respondError(w, r, logger, &convert.ValidationError{Field: "file", Message: "no selected file"})
			return
		}

		result, err := fileService.Upload(r.Context(), &files.UploadRequest{
			Name:    header.Filename,
			Content: file,
		})
		if err != nil {
			respondError(w, r, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func convertFile(fileService *files.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req files.ConvertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, r, logger, fmt.Errorf("request body: %w", convert.ErrTooLarge))
				return
			}
			respondError(w, r, logger, &convert.ValidationError{Message: "invalid JSON body"})
			return
		}

		result, err := fileService.Convert(r.Context(), &req)
		if err != nil {
			respondError(w, r, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, result)
	}
}

func downloadFile(fileService *files.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.PathValue("filename")

		content, artifact, err := fileService.Download(r.Context(), filename)
		if err != nil {
			respondError(w, r, logger, err)
			return
		}
		defer content.Close()

		mtype, err := mimetype.DetectReader(content)
		if err != nil {
			respondError(w, r, logger, fmt.Errorf("failed to detect content type: %w", err))
			return
		}
		if _, err := content.Seek(0, io.SeekStart); err != nil {
			respondError(w, r, logger, fmt.Errorf("failed to rewind download: %w", err))
			return
		}

		w.Header().Set("Content-Type", mtype.String())
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Name}))
		http.ServeContent(w, r, artifact.Name, artifact.ModifiedAt, content)
	}
}

type formatsResponse struct {
	Format           string   `json:"format"`
	SupportedFormats []string `json:"supported_formats"`
}

func supportedFormats(fileService *files.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := r.PathValue("format")
		targets := fileService.SupportedFormats(f)

		resp := formatsResponse{Format: f, SupportedFormats: make([]string, 0, len(targets))}
		for _, t := range targets {
			resp.SupportedFormats = append(resp.SupportedFormats, string(t))
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func listConversions(fileService *files.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				respondError(w, r, logger, &convert.ValidationError{Field: "limit", Message: "must be an integer"})
				return
			}
			limit = n
		}

		conversions, err := fileService.RecentConversions(r.Context(), limit)
		if err != nil {
			respondError(w, r, logger, err)
			return
		}
		respondJSON(w, http.StatusOK, conversions)
	}
}
