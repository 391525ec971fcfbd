package scoring

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/fmuoria/agent-studio/internal/models"
)

// Field names requested from the model and decoded by Reconcile
const (
	KeyCandidates      = "candidates"
	KeyName            = "name"
	KeySourceFile      = "source_file"
	KeyScore           = "score"
	KeyYearsExperience = "years_experience"
	KeySkills          = "skills"
	KeyEducation       = "education"
	KeyRecommendation  = "recommendation"
)

// DocumentSeparator separates candidate blocks in the batch prompt
const DocumentSeparator = "\n---\n"

//go:embed prompt.md
var promptTemplate string

// BuildBatchPrompt composes the screening instruction for a batch of documents
func BuildBatchPrompt(job models.JobRequirements, docs []models.Document, opts Options) string {
	opts = opts.withDefaults()

	replacer := strings.NewReplacer(
		"{{DESCRIPTION}}", orNotSpecified(job.Description),
		"{{SKILLS}}", orNotSpecified(job.Skills),
		"{{MIN_YEARS}}", strconv.Itoa(job.MinYears),
		"{{LOCATION}}", orNotSpecified(job.Location),
		"{{CANDIDATES}}", JoinDocuments(docs),
		"{{SCORE_MIN}}", strconv.Itoa(opts.ScoreMin),
		"{{SCORE_MAX}}", strconv.Itoa(opts.ScoreMax),
	)
	return replacer.Replace(promptTemplate)
}

// JoinDocuments tags each document text with its file name
func JoinDocuments(docs []models.Document) string {
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, sanitizeUTF8(d.Name)+": "+sanitizeUTF8(d.Text))
	}
	return strings.Join(blocks, DocumentSeparator)
}

func orNotSpecified(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "not specified"
	}
	return sanitizeUTF8(s)
}

// sanitizeUTF8 replaces invalid byte sequences so the prompt survives JSON encoding
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}
