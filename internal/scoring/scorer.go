package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fmuoria/agent-studio/internal/models"
)

// Kind tags the outcome of reconciliation
type Kind int

const (
	// Parsed means the reply carried a usable candidates array
	Parsed Kind = iota
	// Fallback means placeholders were synthesized from the documents
	Fallback
)

func (k Kind) String() string {
	if k == Parsed {
		return "parsed"
	}
	return "fallback"
}

// Spanish aliases accepted for every requested field
var aliases = map[string][]string{
	KeyCandidates:      {KeyCandidates, "candidatos"},
	KeyName:            {KeyName, "nombre"},
	KeySourceFile:      {KeySourceFile, "archivo"},
	KeyScore:           {KeyScore, "puntaje"},
	KeyYearsExperience: {KeyYearsExperience, "experiencia_anos", "experiencia_años"},
	KeySkills:          {KeySkills, "habilidades"},
	KeyEducation:       {KeyEducation, "educacion", "educación"},
	KeyRecommendation:  {KeyRecommendation, "recomendacion", "recomendación"},
}

// Options holds the score bounds and the placeholder values
type Options struct {
	ScoreMin       int
	ScoreMax       int
	DefaultScore   int
	NamePrefix     string
	Recommendation string
}

// DefaultOptions returns the standard score range and placeholders
func DefaultOptions() Options {
	return Options{
		ScoreMin:       0,
		ScoreMax:       100,
		DefaultScore:   75,
		NamePrefix:     "Candidato",
		Recommendation: "Analizado",
	}
}

func (o Options) withDefaults() Options {
	if o.ScoreMin >= o.ScoreMax {
		o.ScoreMin, o.ScoreMax = 0, 100
	}
	if strings.TrimSpace(o.NamePrefix) == "" {
		o.NamePrefix = "Candidato"
	}
	o.DefaultScore = o.clamp(o.DefaultScore)
	return o
}

func (o Options) clamp(score int) int {
	return max(o.ScoreMin, min(o.ScoreMax, score))
}

// ParsedBatch is the outcome of reconciling one reply.
// Records is never empty when at least one document was supplied.
type ParsedBatch struct {
	Kind    Kind
	Records []models.CandidateRecord
	Raw     string
	// Reason explains why the fallback was taken
	Reason string
}

// Result wraps the records in a BatchResult
func (p ParsedBatch) Result() *models.BatchResult {
	return &models.BatchResult{Candidates: p.Records}
}

// Reconcile extracts candidate records from a free-text reply.
// It never fails: an unusable reply yields one placeholder per document.
func Reconcile(reply string, docs []models.Document, opts Options) ParsedBatch {
	opts = opts.withDefaults()

	records, err := decodeCandidates(ExtractPayload(reply), opts)
	if err != nil {
		return ParsedBatch{
			Kind:    Fallback,
			Records: Placeholders(docs, opts),
			Raw:     reply,
			Reason:  err.Error(),
		}
	}
	return ParsedBatch{Kind: Parsed, Records: records, Raw: reply}
}

// Placeholders synthesizes one record per document, by position
func Placeholders(docs []models.Document, opts Options) []models.CandidateRecord {
	opts = opts.withDefaults()
	records := make([]models.CandidateRecord, 0, len(docs))
	for i, d := range docs {
		records = append(records, models.CandidateRecord{
			Name:           fmt.Sprintf("%s %d", opts.NamePrefix, i+1),
			SourceFile:     d.Name,
			Score:          opts.DefaultScore,
			Skills:         []string{},
			Recommendation: opts.Recommendation,
		})
	}
	return records
}

// ExtractPayload returns the content of the first ```json fence, else the
// first generic fence, else the whole reply.
func ExtractPayload(reply string) string {
	if start := indexJSONFence(reply); start >= 0 {
		return strings.TrimSpace(fenceBody(reply[start+len("```json"):]))
	}

	if start := strings.Index(reply, "```"); start >= 0 {
		body := fenceBody(reply[start+len("```"):])
		// Drop an info string such as "JSON" or "javascript"
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[\"") {
			body = body[nl+1:]
		}
		return strings.TrimSpace(body)
	}

	return strings.TrimSpace(reply)
}

// fenceBody cuts s at the closing fence, if there is one
func fenceBody(s string) string {
	if end := strings.Index(s, "```"); end >= 0 {
		return s[:end]
	}
	return s
}

// indexJSONFence finds "```json" ignoring the case of the label
func indexJSONFence(s string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], "```")
		if i < 0 {
			return -1
		}
		label := offset + i + 3
		if len(s) >= label+4 && strings.EqualFold(s[label:label+4], "json") {
			return offset + i
		}
		offset = label
	}
}

var errNoCandidates = errors.New("reply has no candidates array")

func decodeCandidates(payload string, opts Options) ([]models.CandidateRecord, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	raw, ok := lookup(data, KeyCandidates)
	if !ok || raw == nil {
		return nil, errNoCandidates
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s is %T, not an array", KeyCandidates, raw)
	}
	if len(items) == 0 {
		return nil, errNoCandidates
	}

	records := make([]models.CandidateRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("candidate %d is %T, not an object", i+1, item)
		}
		rec, err := decodeRecord(obj, i, opts)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(obj map[string]any, index int, opts Options) (models.CandidateRecord, error) {
	var rec models.CandidateRecord
	var err error

	if rec.Name, err = stringField(obj, KeyName); err != nil {
		return rec, err
	}
	if rec.Name == "" {
		rec.Name = fmt.Sprintf("%s %d", opts.NamePrefix, index+1)
	}
	if rec.SourceFile, err = stringField(obj, KeySourceFile); err != nil {
		return rec, err
	}
	if rec.Education, err = stringField(obj, KeyEducation); err != nil {
		return rec, err
	}
	if rec.Recommendation, err = stringField(obj, KeyRecommendation); err != nil {
		return rec, err
	}

	rec.Score = opts.DefaultScore
	if v, ok := lookup(obj, KeyScore); ok && v != nil {
		score, ok := coerceFloat(v)
		if !ok {
			return rec, fmt.Errorf("%s %v is not a number", KeyScore, v)
		}
		rec.Score = opts.clamp(int(math.Round(score)))
	}

	if v, ok := lookup(obj, KeyYearsExperience); ok && v != nil {
		// Optional field: an unreadable value is dropped rather than rejected
		if years, ok := coerceFloat(v); ok {
			y := max(0, int(math.Round(years)))
			rec.YearsExperience = &y
		}
	}

	if rec.Skills, err = skillsField(obj); err != nil {
		return rec, err
	}
	return rec, nil
}

func lookup(obj map[string]any, key string) (any, bool) {
	for _, k := range aliases[key] {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringField(obj map[string]any, key string) (string, error) {
	v, ok := lookup(obj, key)
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("%s is %T, not a string", key, v)
	}
}

func skillsField(obj map[string]any) ([]string, error) {
	v, ok := lookup(obj, KeySkills)
	if !ok || v == nil {
		return []string{}, nil
	}
	switch val := v.(type) {
	case []any:
		skills := make([]string, 0, len(val))
		for _, s := range val {
			switch item := s.(type) {
			case string:
				if item = strings.TrimSpace(item); item != "" {
					skills = append(skills, item)
				}
			case json.Number:
				skills = append(skills, item.String())
			default:
				return nil, fmt.Errorf("%s contains %T", KeySkills, s)
			}
		}
		return skills, nil
	case string:
		skills := []string{}
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
		return skills, nil
	default:
		return nil, fmt.Errorf("%s is %T, not a list", KeySkills, v)
	}
}

func coerceFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case float64:
		return val, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}
