package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appaudit "github.com/payflowhq/invoice-audit/internal/application/audit"
	domai "github.com/payflowhq/invoice-audit/internal/domain/ai"
	domain "github.com/payflowhq/invoice-audit/internal/domain/audit"
	"github.com/payflowhq/invoice-audit/internal/middleware"
)

// multipart parts buffered in memory up to this size, spilled to disk beyond
const multipartMemory = 32 << 20

// Options tunes the HTTP surface. Zero values fall back to safe defaults.
type Options struct {
	MaxUploadBytes int64
	Health         map[string]middleware.HealthChecker
}

type Router struct {
	auditSvc       *appaudit.Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewRouter(auditSvc *appaudit.Service, logger *slog.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{auditSvc: auditSvc, logger: logger, maxUploadBytes: opts.MaxUploadBytes}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(logger))
	mux.Use(middleware.MetricsMiddleware)

	checkers := opts.Health
	if checkers == nil {
		checkers = map[string]middleware.HealthChecker{}
	}

	mux.Get("/", r.wrap(r.handleRoot))
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Post("/analyze-invoices", r.wrap(r.handleAnalyzeInvoices))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, domain.ErrBadInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrDocument):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusServiceUnavailable, "analysis provider is over quota, retry later")
		case errors.Is(err, domai.ErrUnavailable):
			writeError(w, http.StatusBadGateway, "analysis provider unavailable, retry later")
		case errors.Is(err, domain.ErrMalformedResponse), errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			r.logger.Error("http.handler.err", "path", req.URL.Path, "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

// GET /
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) error {
	return respondJSON(w, http.StatusOK, map[string]string{
		"service": "invoice-audit",
		"message": "Invoice Reimbursement Analysis API",
	})
}

// POST /analyze-invoices
// Multipart form: hr_policy (one PDF) + invoices_zip (ZIP of PDFs).
// The whole batch is analyzed in one pass; any failure fails the request.
func (r *Router) handleAnalyzeInvoices(w http.ResponseWriter, req *http.Request) error {
	if r.maxUploadBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadBytes)
	}
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: expected multipart form with hr_policy and invoices_zip: %v", domain.ErrBadInput, err)
	}
	defer func() {
		if req.MultipartForm != nil {
			_ = req.MultipartForm.RemoveAll()
		}
	}()

	policyName, policy, err := readFormFile(req, "hr_policy")
	if err != nil {
		return err
	}
	if err := middleware.ValidatePolicyFilename(policyName); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadInput, err)
	}

	archiveName, archive, err := readFormFile(req, "invoices_zip")
	if err != nil {
		return err
	}
	if err := middleware.ValidateArchiveFilename(archiveName); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadInput, err)
	}

	report, err := r.auditSvc.Analyze(req.Context(), appaudit.AnalyzeCommand{
		AuditID:     middleware.GetAuditIDFromContext(req.Context()),
		PolicyName:  policyName,
		Policy:      policy,
		ArchiveName: archiveName,
		Archive:     archive,
	})
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	middleware.IncrementAnalyses()
	middleware.AddInvoicesProcessed(report.TotalInvoicesProcessed)

	return respondJSON(w, http.StatusOK, report)
}

func readFormFile(req *http.Request, field string) (string, []byte, error) {
	file, header, err := req.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: missing form file %q", domain.ErrBadInput, field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("%w: reading form file %q: %v", domain.ErrBadInput, field, err)
	}
	return middleware.SanitizeFilename(header.Filename), data, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
