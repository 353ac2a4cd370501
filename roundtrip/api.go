package roundtrip

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/fidelity/carrier"
	"github.com/hazyhaar/fidelity/kit"
	"github.com/hazyhaar/fidelity/oxml"
	"github.com/hazyhaar/fidelity/store"
	"github.com/hazyhaar/fidelity/tolerance"
)

// Routes builds the HTTP surface of the service.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/compare", s.handleCompare)
	r.Post("/api/matrix", s.handleMatrix)
	r.Post("/api/carriers", s.handleCarriers)

	r.Get("/api/profiles", s.handleListProfiles)
	r.Post("/api/profiles", s.handleCreateProfile)
	r.Post("/api/profiles/{name}/adjust", s.handleAdjustProfile)
	r.Delete("/api/profiles/{name}", s.handleDeleteProfile)

	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/{id}", s.handleGetRun)

	return r
}

// requestContext mirrors per-request metadata into the same context keys the
// MCP transport populates, so handlers and middlewares log one vocabulary on
// both paths.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		if id := middleware.GetReqID(r.Context()); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleCompare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.config.MaxFileBytes())
	if err := r.ParseMultipartForm(s.config.MaxFileBytes()); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	original, err := formFile(r, "original")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	converted, err := formFile(r, "converted")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.CompareDocuments(r.Context(), original, converted, r.FormValue("profile"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleMatrix(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8*s.config.MaxFileBytes())
	if err := r.ParseMultipartForm(s.config.MaxFileBytes()); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	original, err := formFile(r, "original")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Every file field other than "original" is one platform's converted
	// artifact, keyed by field name.
	converted := make(map[string][]byte)
	for field, headers := range r.MultipartForm.File {
		if field == "original" || len(headers) == 0 {
			continue
		}
		data, err := readHeader(headers[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("read %s: %w", field, err))
			return
		}
		converted[field] = data
	}
	if len(converted) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no converted documents supplied"))
		return
	}

	report, err := s.RunMatrix(r.Context(), original, converted, r.FormValue("profile"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if s.runs != nil {
		docName := r.FormValue("doc_name")
		if docName == "" {
			if fh := r.MultipartForm.File["original"]; len(fh) > 0 {
				docName = fh[0].Filename
			}
		}
		if _, err := s.SaveRun(docName, report); err != nil {
			s.logger.Warn("run not persisted", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleCarriers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxFileBytes())
	if err := r.ParseMultipartForm(s.config.MaxFileBytes()); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	data, err := formFile(r, "document")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc, err := oxml.Parse(data)
	if err != nil {
		// Zero-result contract: unparseable input reports zero carriers.
		writeJSON(w, http.StatusOK, carrier.Analyze(data, ""))
		return
	}
	writeJSON(w, http.StatusOK, carrier.AnalyzeDocument(doc))
}

func (s *Service) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	names := s.registry.Names()
	profiles := make([]*tolerance.Profile, 0, len(names))
	for _, n := range names {
		p, err := s.registry.Profile(n)
		if err != nil {
			continue
		}
		profiles = append(profiles, p)
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Service) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := tolerance.UnmarshalProfile(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.AddProfile(p); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if s.runs != nil {
		if err := s.runs.PutProfile(p); err != nil {
			s.logger.Warn("profile not persisted", "name", p.Name, "error", err)
		}
	}
	s.logger.Info("profile registered",
		"name", p.Name,
		"request_id", kit.GetRequestID(r.Context()),
		"remote", kit.GetRemoteAddr(r.Context()),
		"role", kit.GetRole(r.Context()))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Service) handleAdjustProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		ChangeType    tolerance.ChangeType `json:"change_type"`
		MaxPercentage *float64             `json:"max_percentage"`
		MaxAbsolute   *int                 `json:"max_absolute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.AdjustTolerance(name, req.ChangeType, req.MaxPercentage, req.MaxAbsolute); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	p, err := s.registry.Profile(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Service) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.registry.RemoveProfile(name); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if s.runs != nil {
		if err := s.runs.DeleteProfile(name); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("stored profile not deleted", "name", name, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Service) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("no store configured"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Service) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("no store configured"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	run, err := s.runs.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func formFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("file field %q is required", field)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func readHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// statusFor maps configuration errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tolerance.ErrUnknownProfile):
		return http.StatusNotFound
	case errors.Is(err, tolerance.ErrInvalidThreshold),
		errors.Is(err, tolerance.ErrBuiltinProfile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
