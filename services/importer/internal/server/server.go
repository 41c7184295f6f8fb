package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatvault/internal/servicetoken"
	"chatvault/internal/util"
	"chatvault/services/importer/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                         *app.App
	InternalJWTPublicKeyPath    string
	InternalJWTVerifyPublicKeys map[string]string
	MediaURLTTL                 time.Duration
	MaxUploadBytes              int64
}

// Server exposes HTTP endpoints for the importer service.
type Server struct {
	app          *app.App
	internalAuth *servicetoken.Verifier
	mediaTTL     time.Duration
	maxUpload    int64
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	verifier, err := servicetoken.NewVerifierFromFile(
		"importer",
		[]string{"gateway"},
		strings.TrimSpace(cfg.InternalJWTPublicKeyPath),
		servicetoken.DefaultLeeway,
	)
	if err != nil {
		return nil, err
	}
	for keyID, path := range cfg.InternalJWTVerifyPublicKeys {
		if err := verifier.AddKeyFromFile(keyID, path); err != nil {
			return nil, err
		}
	}

	s := &Server{
		app:          cfg.App,
		internalAuth: verifier,
		mediaTTL:     cfg.MediaURLTTL,
		maxUpload:    cfg.MaxUploadBytes,
		mux:          http.NewServeMux(),
	}
	if s.mediaTTL <= 0 {
		s.mediaTTL = 15 * time.Minute
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 512 << 20
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("importer", s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/import/init", s.withInternal(s.handleImportInit))
	s.mux.Handle("/import/chunks", s.withInternal(s.handleImportChunk))
	s.mux.Handle("/import/simple", s.withInternal(s.handleImportSimple))
	s.mux.Handle("/import/start", s.withInternal(s.handleImportStart))
	s.mux.Handle("/import/jobs", s.withInternal(s.handleJobs))
	s.mux.Handle("/import/jobs/", s.withInternal(s.handleJobByID))
	s.mux.Handle("/conversations", s.withInternal(s.handleConversations))
	s.mux.Handle("/conversations/", s.withInternal(s.handleConversationByID))
	s.mux.Handle("/media/", s.withInternal(s.handleMediaByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withInternal(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.internalAuth.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

type importInitRequest struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"fileSize"`
	TotalChunks int    `json:"totalChunks"`
}

func (s *Server) handleImportInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req importInitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job, err := s.app.CreateImportJob(r.Context(), req.Filename, req.FileSize, req.TotalChunks)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleImportChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	jobID := r.FormValue("jobId")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "jobId is required")
		return
	}
	index, err := strconv.Atoi(r.FormValue("chunkNumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "chunkNumber must be an integer")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file part")
		return
	}

	job, err := s.app.UploadChunk(r.Context(), jobID, index, data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleImportSimple(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file part")
		return
	}

	job, err := s.app.SimpleUpload(r.Context(), header.Filename, data)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

type importStartRequest struct {
	JobID string `json:"jobId"`
}

func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req importStartRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "jobId is required")
		return
	}
	job, err := s.app.StartImport(r.Context(), req.JobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jobs, err := s.app.ListJobs(r.Context(), 50)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/import/jobs/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch sub {
	case "":
		job, err := s.app.GetJob(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case "progress":
		progress, err := s.app.JobProgress(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, progress)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	convs, err := s.app.ListConversations(r.Context(), 50)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

type conversationResponse struct {
	Conversation any `json:"conversation"`
	Participants any `json:"participants"`
}

func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			conv, participants, err := s.app.GetConversation(r.Context(), id)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, conversationResponse{Conversation: conv, Participants: participants})
		case http.MethodDelete:
			if err := s.app.DeleteConversation(r.Context(), id); err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			methodNotAllowed(w)
		}
	case "messages":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		msgs, err := s.app.ListMessages(r.Context(), id, limit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	case "media":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		media, err := s.app.ListMedia(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, media)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleMediaByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/media/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	_, url, err := s.app.MediaURL(r.Context(), id, s.mediaTTL)
	if err != nil {
		writeAppError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrJobNotFound),
		errors.Is(err, app.ErrConversationNotFound),
		errors.Is(err, app.ErrMediaNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrJobNotReady), errors.Is(err, app.ErrUploadIncomplete):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
