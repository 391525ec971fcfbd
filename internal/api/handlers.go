package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/agent"
	"github.com/fmuoria/agent-studio/internal/config"
	"github.com/fmuoria/agent-studio/internal/export"
	"github.com/fmuoria/agent-studio/internal/finance"
	"github.com/fmuoria/agent-studio/internal/models"
)

const (
	// multipartMemory is how much of a form is held in memory before spilling to disk
	multipartMemory = 32 << 20
	// maxJSONBody bounds JSON request bodies
	maxJSONBody = 1 << 20

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Skipped []string `json:"skipped,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}

// respondFailure maps a service error onto a status code. Upstream details are
// logged but never sent to the caller.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *agent.UpstreamError
	switch {
	case errors.Is(err, agent.ErrInvalidRequest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrNoDocuments), errors.Is(err, agent.ErrNoText):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, agent.ErrNoBatch):
		s.respondError(w, http.StatusConflict, "analyze a batch of CVs first")
	case errors.Is(err, agent.ErrUnknownCandidate):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, config.ErrMissingCredential):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &upstream):
		s.log.Error("upstream failure",
			zap.String("op", upstream.Op),
			zap.String("request_id", requestID(r)),
			zap.Error(upstream.Err),
		)
		if upstream.RateLimited() {
			s.respondError(w, http.StatusTooManyRequests, "the agent service is rate limited, try again later")
			return
		}
		s.respondError(w, http.StatusBadGateway, "the agent service failed to answer, try again later")
	default:
		s.log.Error("request failed", zap.String("request_id", requestID(r)), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", agent.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return fmt.Errorf("%w: failed to parse form: %v", agent.ErrInvalidRequest, err)
	}
	return nil
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": config.AppName,
		"endpoints": map[string]string{
			"POST /api/v1/hr/batch":          "Screen a ZIP of PDF CVs against a job",
			"GET /api/v1/hr/batch":           "Get the current batch",
			"POST /api/v1/hr/optimize":       "Suggest improvements for one CV",
			"POST /api/v1/hr/offer":          "Write a job offer",
			"POST /api/v1/hr/offer/linkedin": "Condense an offer into a LinkedIn post",
			"POST /api/v1/hr/questions":      "Interview questions for the top candidate",
			"POST /api/v1/hr/chat":           "Ask about the analyzed candidates",
			"POST /api/v1/hr/interviews":     "Schedule an interview",
			"GET /api/v1/hr/interviews":      "List scheduled interviews",
			"GET /api/v1/hr/export":          "Download the batch as xlsx",
			"POST /api/v1/finance":           "Financial analysis",
			"POST /api/v1/maps":              "Geographic questions",
			"GET /health":                    "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// handleBatch screens an uploaded bundle and replaces the session batch
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := s.parseMultipart(w, r); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	job, team, err := batchForm(r)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	file, header, err := r.FormFile("bundle")
	if err != nil {
		if subject := strings.TrimSpace(r.FormValue("gmail_subject")); subject != "" {
			s.handleGmailBatch(w, r, subject, job, team)
			return
		}
		s.respondError(w, http.StatusBadRequest, "bundle or gmail_subject is required")
		return
	}
	defer file.Close()
	s.log.Info("batch upload received",
		zap.String("session_id", sess.ID()),
		zap.String("file", header.Filename),
		zap.Int64("bytes", header.Size),
	)

	var (
		outcome agent.BatchOutcome
		runErr  error
	)
	spoolErr := s.files.WithSpooledBundle(file, func(zr *zip.Reader) error {
		outcome, runErr = s.agent.AnalyzeArchive(r.Context(), sess, zr, job, team)
		return runErr
	})
	switch {
	case errors.Is(runErr, agent.ErrNoDocuments):
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: runErr.Error(), Skipped: outcome.Skipped})
		return
	case runErr != nil:
		s.respondFailure(w, r, runErr)
		return
	case spoolErr != nil:
		s.respondError(w, http.StatusBadRequest, "invalid bundle: "+spoolErr.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, outcome.Response(s.now()))
}

func (s *Server) handleGmailBatch(w http.ResponseWriter, r *http.Request, subject string, job models.JobRequirements, team bool) {
	outcome, err := s.agent.AnalyzeGmail(r.Context(), SessionFromContext(r.Context()), subject, job, team)
	switch {
	case errors.Is(err, agent.ErrGmailDisabled):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, agent.ErrNoDocuments):
		s.respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Skipped: outcome.Skipped})
	case err != nil:
		s.respondFailure(w, r, err)
	default:
		s.respondJSON(w, http.StatusOK, outcome.Response(s.now()))
	}
}

func batchForm(r *http.Request) (models.JobRequirements, bool, error) {
	job := models.JobRequirements{
		Description: strings.TrimSpace(r.FormValue("job_description")),
		Skills:      strings.TrimSpace(r.FormValue("skills")),
		Location:    strings.TrimSpace(r.FormValue("location")),
	}
	if job.Description == "" {
		return job, false, fmt.Errorf("%w: job_description is required", agent.ErrInvalidRequest)
	}

	if v := strings.TrimSpace(r.FormValue("min_years")); v != "" {
		years, err := strconv.Atoi(v)
		if err != nil || years < 0 {
			return job, false, fmt.Errorf("%w: min_years must be a non-negative integer", agent.ErrInvalidRequest)
		}
		job.MinYears = years
	}

	team := false
	if v := strings.TrimSpace(r.FormValue("team")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return job, false, fmt.Errorf("%w: team must be a boolean", agent.ErrInvalidRequest)
		}
		team = b
	}
	return job, team, nil
}

// handleGetBatch returns the current batch of the session
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	batch := sess.Batch()
	if batch.Len() == 0 {
		s.respondFailure(w, r, agent.ErrNoBatch)
		return
	}
	raw, fallback := sess.Raw()
	outcome := agent.BatchOutcome{Result: batch, Raw: raw, Fallback: fallback}
	s.respondJSON(w, http.StatusOK, outcome.Response(s.now()))
}

// handleOptimize reviews a single uploaded CV
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	file, header, err := r.FormFile("cv")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "cv is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read cv")
		return
	}

	answer, err := s.agent.OptimizeCV(r.Context(), header.Filename, data, r.FormValue("role"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TextResponse{Answer: answer})
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req agent.OfferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	offer, err := s.agent.GenerateOffer(r.Context(), req)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TextResponse{Answer: offer})
}

type linkedInRequest struct {
	agent.OfferRequest
	Offer string `json:"offer"`
}

func (s *Server) handleLinkedIn(w http.ResponseWriter, r *http.Request) {
	var req linkedInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	post, err := s.agent.LinkedInPost(r.Context(), req.Offer, req.OfferRequest)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TextResponse{Answer: post})
}

type questionsResponse struct {
	Candidate string `json:"candidate"`
	Questions string `json:"questions"`
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	top, questions, err := s.agent.InterviewQuestions(r.Context(), SessionFromContext(r.Context()))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, questionsResponse{Candidate: top.Name, Questions: questions})
}

type questionRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	answer, err := s.agent.Ask(r.Context(), SessionFromContext(r.Context()), req.Question)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TextResponse{Answer: answer})
}

func (s *Server) handleScheduleInterview(w http.ResponseWriter, r *http.Request) {
	var req models.InterviewBooking
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	booking, err := s.agent.ScheduleInterview(SessionFromContext(r.Context()), req.CandidateName, req.Date)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	interviews := SessionFromContext(r.Context()).Interviews()
	if interviews == nil {
		interviews = []models.InterviewBooking{}
	}
	s.respondJSON(w, http.StatusOK, interviews)
}

// handleExport streams the session batch as an xlsx workbook
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	batch := sess.Batch()
	if batch.Len() == 0 {
		s.respondFailure(w, r, agent.ErrNoBatch)
		return
	}
	_, fallback := sess.Raw()
	now := s.now()

	var buf bytes.Buffer
	err := export.WriteBatch(&buf, export.Report{
		Job:        sess.Job(),
		Batch:      batch,
		Interviews: sess.Interviews(),
		Fallback:   fallback,
		Generated:  now,
	})
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cv-screening-%s.xlsx"`, now.Format("20060102-150405")))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn("failed to stream export", zap.Error(err))
	}
}

type financeRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	var req financeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	mode, err := finance.ParseMode(req.Mode)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	answer, err := s.finance.Analyze(r.Context(), req.Query, mode)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TextResponse{Answer: answer})
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	answer, err := s.maps.Run(r.Context(), req.Question)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.TextResponse{Answer: answer})
}
