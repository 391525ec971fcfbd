package agent

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/catalog"
	"github.com/fmuoria/agent-studio/internal/config"
	"github.com/fmuoria/agent-studio/internal/ingestion"
	"github.com/fmuoria/agent-studio/internal/llm"
	"github.com/fmuoria/agent-studio/internal/models"
	"github.com/fmuoria/agent-studio/internal/scoring"
	"github.com/fmuoria/agent-studio/internal/session"
)

// DateLayout is the calendar date format of interview bookings
const DateLayout = "2006-01-02"

var (
	// ErrNoDocuments is returned when a bundle yields no usable CV
	ErrNoDocuments = errors.New("no CVs found")
	// ErrNoText is returned when a single CV has no extractable text
	ErrNoText = errors.New("could not extract text from the CV")
	// ErrNoBatch is returned by follow-ups before any batch was analyzed
	ErrNoBatch = errors.New("no analyzed batch in this session")
	// ErrUnknownCandidate is returned when booking a name that is not in the batch
	ErrUnknownCandidate = errors.New("candidate is not in the current batch")
	// ErrInvalidRequest marks missing or malformed user input
	ErrInvalidRequest = errors.New("invalid request")
	// ErrGmailDisabled is returned by AnalyzeGmail when no Gmail handler is set
	ErrGmailDisabled = errors.New("gmail ingestion is not configured")
)

// ProgressCallback is called to report progress during processing
type ProgressCallback func(current, total int, message string)

// Options holds the screening parameters
type Options struct {
	Ingestion ingestion.Options
	Scoring   scoring.Options
	// MaxSingleCVChars bounds the CV text sent for optimization
	MaxSingleCVChars int
}

// DefaultOptions returns the documented defaults
func DefaultOptions() Options {
	return Options{
		Ingestion:        ingestion.DefaultOptions(),
		Scoring:          scoring.DefaultOptions(),
		MaxSingleCVChars: 2500,
	}
}

// OptionsFromConfig maps the hr settings onto screening options
func OptionsFromConfig(hr config.HRConfig) Options {
	opts := DefaultOptions()
	opts.Ingestion.MinContentChars = hr.MinContentChars
	opts.Ingestion.MaxDocumentChars = hr.MaxDocumentChars
	opts.Ingestion.MaxEntryBytes = hr.MaxEntryBytes
	opts.Scoring = scoring.Options{
		ScoreMin:       hr.ScoreMin,
		ScoreMax:       hr.ScoreMax,
		DefaultScore:   hr.Fallback.Score,
		NamePrefix:     hr.Fallback.NamePrefix,
		Recommendation: hr.Fallback.Recommendation,
	}
	opts.MaxSingleCVChars = hr.MaxSingleCVChars
	return opts
}

// CVReviewAgent orchestrates CV screening and its follow-ups
type CVReviewAgent struct {
	catalog *catalog.Catalog
	invoker llm.Invoker
	opts    Options
	log     *zap.Logger
	now     func() time.Time

	mu           sync.RWMutex
	progressCb   ProgressCallback
	gmailHandler *ingestion.GmailHandler
}

// NewCVReviewAgent creates a new CV review agent
func NewCVReviewAgent(cat *catalog.Catalog, invoker llm.Invoker, opts Options, log *zap.Logger) *CVReviewAgent {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxSingleCVChars <= 0 {
		opts.MaxSingleCVChars = DefaultOptions().MaxSingleCVChars
	}
	return &CVReviewAgent{
		catalog: cat,
		invoker: invoker,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// SetProgressCallback sets the progress callback function
func (a *CVReviewAgent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

// SetGmailHandler enables AnalyzeGmail
func (a *CVReviewAgent) SetGmailHandler(gh *ingestion.GmailHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gmailHandler = gh
}

// reportProgress calls the progress callback if set
func (a *CVReviewAgent) reportProgress(current, total int, message string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		cb(current, total, message)
	}
}

// BatchRequest is one screening run
type BatchRequest struct {
	Entries []ingestion.Entry
	// Skipped carries entries rejected before text extraction, such as corrupt archive members
	Skipped []ingestion.Extraction
	Job     models.JobRequirements
	// Team selects the two-analyst team instead of the single analyst
	Team bool
}

// BatchOutcome is the result of a screening run
type BatchOutcome struct {
	Result   *models.BatchResult
	Raw      string
	Fallback bool
	// Reason explains why the fallback was used
	Reason  string
	Skipped []string
}

// Response renders the outcome for presentation
func (o BatchOutcome) Response(now time.Time) models.BatchResponse {
	resp := models.BatchResponse{
		Candidates: o.Result.Rows(),
		Fallback:   o.Fallback,
		Skipped:    o.Skipped,
		Timestamp:  now.Format(time.RFC3339),
	}
	if o.Fallback {
		resp.Raw = o.Raw
	}
	return resp
}

// AnalyzeArchive screens the PDF members of an opened ZIP archive
func (a *CVReviewAgent) AnalyzeArchive(ctx context.Context, sess *session.Session, zr *zip.Reader, job models.JobRequirements, team bool) (BatchOutcome, error) {
	a.reportProgress(0, 100, "Reading archive...")
	entries, skipped := ingestion.ExtractZip(zr, a.opts.Ingestion, a.log)
	return a.AnalyzeBatch(ctx, sess, BatchRequest{Entries: entries, Skipped: skipped, Job: job, Team: team})
}

// AnalyzeGmail screens the PDF attachments of messages matching subject
func (a *CVReviewAgent) AnalyzeGmail(ctx context.Context, sess *session.Session, subject string, job models.JobRequirements, team bool) (BatchOutcome, error) {
	a.mu.RLock()
	gh := a.gmailHandler
	a.mu.RUnlock()
	if gh == nil {
		return BatchOutcome{}, ErrGmailDisabled
	}

	a.reportProgress(0, 100, "Fetching emails from Gmail...")
	entries, skipped, err := gh.FetchBundle(ctx, subject)
	if err != nil {
		return BatchOutcome{}, &UpstreamError{Op: "gmail fetch", Err: err}
	}
	return a.AnalyzeBatch(ctx, sess, BatchRequest{Entries: entries, Skipped: skipped, Job: job, Team: team})
}

// AnalyzeBatch extracts the CVs, asks the agent to score them and stores the
// reconciled batch in the session, replacing any previous one.
func (a *CVReviewAgent) AnalyzeBatch(ctx context.Context, sess *session.Session, req BatchRequest) (BatchOutcome, error) {
	if strings.TrimSpace(req.Job.Description) == "" {
		return BatchOutcome{}, fmt.Errorf("%w: job description is required", ErrInvalidRequest)
	}

	a.reportProgress(10, 100, fmt.Sprintf("Extracting text from %d documents...", len(req.Entries)))
	extractions := ingestion.ExtractDocuments(req.Entries, a.opts.Ingestion, a.log)
	docs := ingestion.Usable(extractions)
	skipped := ingestion.SkippedNames(append(append([]ingestion.Extraction(nil), req.Skipped...), extractions...))

	if len(docs) == 0 {
		return BatchOutcome{Skipped: skipped}, ErrNoDocuments
	}

	a.log.Info("analyzing batch",
		zap.Int("documents", len(docs)),
		zap.Int("skipped", len(skipped)),
		zap.Bool("team", req.Team),
	)
	a.reportProgress(30, 100, fmt.Sprintf("Analyzing %d candidates...", len(docs)))

	profile := catalog.HRBatch
	if req.Team {
		profile = catalog.HRTeam
	}
	prompt := scoring.BuildBatchPrompt(req.Job, docs, a.opts.Scoring)
	reply, err := a.run(ctx, "batch analysis", profile, prompt)
	if err != nil {
		return BatchOutcome{Skipped: skipped}, err
	}

	a.reportProgress(90, 100, "Reading results...")
	parsed := scoring.Reconcile(reply, docs, a.opts.Scoring)
	fallback := parsed.Kind == scoring.Fallback
	if fallback {
		a.log.Warn("agent reply could not be parsed, using placeholders", zap.String("reason", parsed.Reason))
	}

	result := parsed.Result()
	sess.ReplaceBatch(req.Job, result, reply, fallback)

	a.reportProgress(100, 100, "Processing complete!")
	return BatchOutcome{
		Result:   result,
		Raw:      reply,
		Fallback: fallback,
		Reason:   parsed.Reason,
		Skipped:  skipped,
	}, nil
}

// OptimizeCV reviews a single CV for the target role
func (a *CVReviewAgent) OptimizeCV(ctx context.Context, filename string, data []byte, role string) (string, error) {
	if strings.TrimSpace(role) == "" {
		return "", fmt.Errorf("%w: target role is required", ErrInvalidRequest)
	}
	text := strings.TrimSpace(ingestion.ExtractText(filename, data))
	if text == "" {
		return "", ErrNoText
	}
	text = ingestion.Truncate(text, a.opts.MaxSingleCVChars)

	prompt := fmt.Sprintf("CV for %s:\n%s\n\nAnalyze it and suggest 5 specific improvements, the keywords it is missing and a score from 1 to 10.", role, text)
	return a.run(ctx, "cv optimization", catalog.HROptimizer, prompt)
}

// InterviewQuestions writes questions for the highest scored candidate of the batch
func (a *CVReviewAgent) InterviewQuestions(ctx context.Context, sess *session.Session) (models.CandidateRecord, string, error) {
	top, ok := sess.Batch().Top()
	if !ok {
		return models.CandidateRecord{}, "", ErrNoBatch
	}

	prompt := fmt.Sprintf(
		"Candidate: %s. Skills: %s.\nRole: %s\n\nWrite 5 interview questions for this candidate that check the skills and experience the role needs.",
		top.Name, strings.Join(top.Skills, ", "), sess.Job().Summary(),
	)
	answer, err := a.run(ctx, "interview questions", catalog.HRInterviewer, prompt)
	if err != nil {
		return models.CandidateRecord{}, "", err
	}
	return top, answer, nil
}

// Ask answers a question about the analyzed candidates using only the batch data
func (a *CVReviewAgent) Ask(ctx context.Context, sess *session.Session, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	batch := sess.Batch()
	if batch.Len() == 0 {
		return "", ErrNoBatch
	}

	prompt := fmt.Sprintf("Question: %s\nCandidate data:\n%s\nRole: %s\nAnswer based only on this data.",
		question, candidateTable(batch), sess.Job().Description)
	return a.run(ctx, "results chat", catalog.HRChat, prompt)
}

// ScheduleInterview books a candidate of the current batch. An empty date means today.
func (a *CVReviewAgent) ScheduleInterview(sess *session.Session, name, date string) (models.InterviewBooking, error) {
	batch := sess.Batch()
	if batch.Len() == 0 {
		return models.InterviewBooking{}, ErrNoBatch
	}
	if _, ok := batch.FindByName(name); !ok {
		return models.InterviewBooking{}, fmt.Errorf("%w: %q", ErrUnknownCandidate, name)
	}

	date = strings.TrimSpace(date)
	if date == "" {
		date = a.now().Format(DateLayout)
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		return models.InterviewBooking{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}

	booking := models.InterviewBooking{CandidateName: name, Date: date}
	sess.Book(booking)
	a.log.Info("interview scheduled", zap.String("candidate", name), zap.String("date", date))
	return booking, nil
}

// run builds the profile, invokes it once and classifies failures
func (a *CVReviewAgent) run(ctx context.Context, op, profile, prompt string) (string, error) {
	runner, err := a.catalog.Build(profile, a.invoker, nil)
	if err != nil {
		return "", err
	}
	reply, err := runner.Run(ctx, prompt)
	if err != nil {
		a.log.Error("agent call failed", zap.String("operation", op), zap.Error(err))
		return "", &UpstreamError{Op: op, Err: err}
	}
	return reply, nil
}
