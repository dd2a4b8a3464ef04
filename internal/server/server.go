package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"docmentor/internal/app"
	"docmentor/internal/extract"
	"docmentor/internal/ratelimit"
	"docmentor/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter // optional, guards model-backed endpoints
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the document companion HTTP API.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("docmentor", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/api/documents/upload", s.withLimit(s.handleUpload))
	s.mux.HandleFunc("/api/documents/", s.handleDocumentByID)

	s.mux.Handle("/api/conversations/ask", s.withLimit(s.handleAsk))
	s.mux.HandleFunc("/api/conversations/", s.handleConversationByID)

	s.mux.Handle("/api/challenges/start", s.withLimit(s.handleChallengeStart))
	s.mux.Handle("/api/challenges/answer", s.withLimit(s.handleChallengeAnswer))
	s.mux.HandleFunc("/api/challenges/", s.handleChallengeByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withLimit applies the fixed-window rate limit to endpoints that call the
// model provider. Without a configured limiter it is a no-op.
func (s *Server) withLimit(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r, s.trustedProxies)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: document)")
		return
	}
	defer file.Close()

	path, cleanup, err := spoolUpload(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer cleanup()

	doc, err := s.app.UploadDocument(r.Context(), header.Filename, path)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedType):
			writeError(w, http.StatusBadRequest, "unsupported file type (expected .pdf or .txt)")
		case errors.Is(err, extract.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, "document contains no extractable text")
		default:
			writeError(w, http.StatusInternalServerError, "failed to process document")
		}
		return
	}
	// The extracted text is not echoed back; fetch the document for it.
	writeJSON(w, http.StatusCreated, map[string]any{
		"document": documentSummary{
			ID:         doc.ID,
			Filename:   doc.Filename,
			Summary:    doc.Summary,
			UploadedAt: doc.UploadedAt,
		},
	})
}

// documentSummary is the upload response record: the document without its
// extracted text.
type documentSummary struct {
	ID         int       `json:"id"`
	Filename   string    `json:"filename"`
	Summary    string    `json:"summary"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// spoolUpload writes the multipart part to a temp file so text extraction
// and archival can reread it. The caller removes it via cleanup.
func spoolUpload(file io.Reader) (string, func(), error) {
	tmp, err := os.CreateTemp("", "docmentor-upload-*")
	if err != nil {
		return "", nil, err
	}
	path := tmp.Name()
	cleanup := func() { _ = os.Remove(path) }
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// /api/documents/{id}
func (s *Server) handleDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, ok := pathID(r.URL.Path, "/api/documents/")
	if !ok {
		notFound(w, "not found")
		return
	}
	doc, err := s.app.GetDocument(id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

type askRequest struct {
	DocumentID     int    `json:"documentId"`
	Question       string `json:"question"`
	ConversationID int    `json:"conversationId"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	res, err := s.app.Ask(r.Context(), req.DocumentID, req.Question, req.ConversationID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":         res.Answer,
		"conversationId": res.ConversationID,
	})
}

// /api/conversations/{id}
func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, ok := pathID(r.URL.Path, "/api/conversations/")
	if !ok {
		notFound(w, "not found")
		return
	}
	conv, err := s.app.GetConversation(id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

type challengeStartRequest struct {
	DocumentID int `json:"documentId"`
}

func (s *Server) handleChallengeStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req challengeStartRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, err := s.app.StartChallenge(r.Context(), req.DocumentID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"challengeId":    start.ChallengeID,
		"question":       start.Question,
		"questionNumber": start.QuestionNumber,
		"totalQuestions": start.TotalQuestions,
	})
}

type challengeAnswerRequest struct {
	ChallengeID int    `json:"challengeId"`
	Answer      string `json:"answer"`
}

func (s *Server) handleChallengeAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req challengeAnswerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}
	res, err := s.app.SubmitAnswer(r.Context(), req.ChallengeID, req.Answer)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	payload := map[string]any{
		"evaluation":     res.Evaluation,
		"isCompleted":    res.IsCompleted,
		"questionNumber": res.QuestionNumber,
		"totalQuestions": res.TotalQuestions,
	}
	if !res.IsCompleted {
		payload["nextQuestion"] = res.NextQuestion
		payload["nextQuestionNumber"] = res.NextQuestionNumber
	}
	writeJSON(w, http.StatusOK, payload)
}

// /api/challenges/{id}
func (s *Server) handleChallengeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id, ok := pathID(r.URL.Path, "/api/challenges/")
	if !ok {
		notFound(w, "not found")
		return
	}
	ch, err := s.app.GetChallenge(id)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenge": ch})
}

func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrDocumentNotFound):
		notFound(w, "document not found")
	case errors.Is(err, app.ErrConversationNotFound):
		notFound(w, "conversation not found")
	case errors.Is(err, app.ErrChallengeNotFound):
		notFound(w, "challenge not found")
	case errors.Is(err, app.ErrChallengeCompleted):
		writeError(w, http.StatusConflict, "challenge already completed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(path, prefix string) (int, bool) {
	raw := strings.TrimPrefix(path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "document not found":
		return "DOCUMENT_NOT_FOUND"
	case message == "conversation not found":
		return "CONVERSATION_NOT_FOUND"
	case message == "challenge not found":
		return "CHALLENGE_NOT_FOUND"
	case message == "challenge already completed":
		return "CHALLENGE_COMPLETED"
	case strings.Contains(message, "unsupported file type"):
		return "DOCUMENT_UNSUPPORTED_FILE_TYPE"
	case strings.Contains(message, "no extractable text"):
		return "DOCUMENT_EMPTY"
	case strings.Contains(message, "file is required"):
		return "DOCUMENT_FILE_REQUIRED"
	case message == "invalid form data":
		return "DOCUMENT_INVALID_UPLOAD_FORM"
	case message == "rate limit exceeded":
		return "RATE_LIMITED"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "REQUEST_CONFLICT"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
