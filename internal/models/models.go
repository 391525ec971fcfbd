package models

import (
	"sort"
	"strconv"
	"strings"
)

// JobRequirements describes the position a batch of CVs is screened against
type JobRequirements struct {
	Description string `json:"description"`
	Skills      string `json:"skills"`
	MinYears    int    `json:"min_years"`
	Location    string `json:"location"`
}

// Summary renders the requirements as the single-line role used by follow-up prompts
func (j JobRequirements) Summary() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(j.Description))
	if skills := strings.TrimSpace(j.Skills); skills != "" {
		sb.WriteString(". Skills: ")
		sb.WriteString(skills)
	}
	sb.WriteString(". Exp: ")
	sb.WriteString(strconv.Itoa(j.MinYears))
	sb.WriteString(" years")
	if loc := strings.TrimSpace(j.Location); loc != "" {
		sb.WriteString(". Location: ")
		sb.WriteString(loc)
	}
	return sb.String()
}

// Document is a named CV whose text has been extracted and bounded for prompting
type Document struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// CandidateRecord is one screened candidate of a batch
type CandidateRecord struct {
	Name            string   `json:"name"`
	SourceFile      string   `json:"source_file"`
	Score           int      `json:"score"`
	YearsExperience *int     `json:"years_experience,omitempty"`
	Skills          []string `json:"skills"`
	Education       string   `json:"education"`
	Recommendation  string   `json:"recommendation"`
}

// BatchResult holds the candidates of one analysis run
type BatchResult struct {
	Candidates []CandidateRecord `json:"candidates"`
}

// Len returns the number of candidates
func (b *BatchResult) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Candidates)
}

// Clone returns a deep copy so callers cannot mutate session-owned state
func (b *BatchResult) Clone() *BatchResult {
	if b == nil {
		return nil
	}
	out := &BatchResult{Candidates: make([]CandidateRecord, len(b.Candidates))}
	for i, c := range b.Candidates {
		if c.YearsExperience != nil {
			years := *c.YearsExperience
			c.YearsExperience = &years
		}
		c.Skills = append([]string(nil), c.Skills...)
		out.Candidates[i] = c
	}
	return out
}

// SortedByScore returns the candidates ordered by score, highest first.
// Equal scores keep their original relative order.
func (b *BatchResult) SortedByScore() []CandidateRecord {
	if b == nil {
		return nil
	}
	sorted := b.Clone().Candidates
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// Top returns the highest scored candidate
func (b *BatchResult) Top() (CandidateRecord, bool) {
	sorted := b.SortedByScore()
	if len(sorted) == 0 {
		return CandidateRecord{}, false
	}
	return sorted[0], true
}

// FindByName returns the first candidate with the given name
func (b *BatchResult) FindByName(name string) (CandidateRecord, bool) {
	if b == nil {
		return CandidateRecord{}, false
	}
	for _, c := range b.Candidates {
		if c.Name == name {
			return c, true
		}
	}
	return CandidateRecord{}, false
}

// Names lists candidate names in batch order
func (b *BatchResult) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.Candidates))
	for _, c := range b.Candidates {
		names = append(names, c.Name)
	}
	return names
}

// CandidateRow is the fixed column projection shown in result tables
type CandidateRow struct {
	Name           string `json:"name"`
	Score          int    `json:"score"`
	Skills         string `json:"skills"`
	Education      string `json:"education"`
	Recommendation string `json:"recommendation"`
}

// Rows projects the candidates, sorted by score, onto the display columns.
// Missing optional fields render as empty strings.
func (b *BatchResult) Rows() []CandidateRow {
	sorted := b.SortedByScore()
	rows := make([]CandidateRow, 0, len(sorted))
	for _, c := range sorted {
		rows = append(rows, CandidateRow{
			Name:           c.Name,
			Score:          c.Score,
			Skills:         strings.Join(c.Skills, ", "),
			Education:      c.Education,
			Recommendation: c.Recommendation,
		})
	}
	return rows
}

// InterviewBooking is a scheduled interview for a candidate
type InterviewBooking struct {
	CandidateName string `json:"candidate_name"`
	Date          string `json:"date"`
}

// BatchResponse is returned after a batch analysis
type BatchResponse struct {
	Candidates []CandidateRow `json:"candidates"`
	Fallback   bool           `json:"fallback"`
	Raw        string         `json:"raw,omitempty"`
	Skipped    []string       `json:"skipped,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// TextResponse wraps a free-text agent answer
type TextResponse struct {
	Answer string `json:"answer"`
}
