package scoring

import (
	"reflect"
	"strings"
	"testing"

	"github.com/fmuoria/agent-studio/internal/models"
)

func twoDocs() []models.Document {
	return []models.Document{
		{Name: "ana.pdf", Text: "Ana Gómez. Go developer."},
		{Name: "luis.pdf", Text: "Luis Pérez. Data analyst."},
	}
}

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "json fence",
			reply: "Here you go:\n```json\n{\"a\":1}\n```\nThanks",
			want:  `{"a":1}`,
		},
		{
			name:  "json fence label in upper case",
			reply: "```JSON\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "json fence wins over an earlier generic fence",
			reply: "```\nnot this\n```\nthen\n```json\n{\"a\":2}\n```",
			want:  `{"a":2}`,
		},
		{
			name:  "generic fence",
			reply: "Result:\n```\n{\"a\":3}\n```",
			want:  `{"a":3}`,
		},
		{
			name:  "generic fence with other info string",
			reply: "```javascript\n{\"a\":4}\n```",
			want:  `{"a":4}`,
		},
		{
			name:  "generic fence with payload on the first line",
			reply: "```{\"a\":5}```",
			want:  `{"a":5}`,
		},
		{
			name:  "unterminated json fence",
			reply: "```json\n{\"a\":6}",
			want:  `{"a":6}`,
		},
		{
			name:  "no fence",
			reply: "  {\"a\":7}  ",
			want:  `{"a":7}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPayload(tt.reply); got != tt.want {
				t.Errorf("ExtractPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReconcile_SpanishKeysInJSONFence(t *testing.T) {
	reply := "Análisis completo:\n```json\n" + `{"candidatos":[
		{"nombre":"Ana","archivo":"ana.pdf","puntaje":90,"experiencia_anos":5,"skills":["Go","SQL"],"educacion":"Ingeniería","recomendacion":"Contratar"},
		{"nombre":"Luis","archivo":"luis.pdf","puntaje":70,"experiencia_anos":2,"skills":["Excel"],"educacion":"Economía","recomendacion":"Considerar"}
	]}` + "\n```"

	parsed := Reconcile(reply, twoDocs(), DefaultOptions())
	if parsed.Kind != Parsed {
		t.Fatalf("Expected parsed result, got %s (%s)", parsed.Kind, parsed.Reason)
	}

	sorted := parsed.Result().SortedByScore()
	if len(sorted) != 2 || sorted[0].Name != "Ana" || sorted[0].Score != 90 || sorted[1].Name != "Luis" || sorted[1].Score != 70 {
		t.Fatalf("Unexpected sorted records: %+v", sorted)
	}
	if sorted[0].YearsExperience == nil || *sorted[0].YearsExperience != 5 {
		t.Errorf("Expected 5 years for Ana, got %v", sorted[0].YearsExperience)
	}
	if sorted[0].SourceFile != "ana.pdf" || sorted[0].Education != "Ingeniería" || sorted[0].Recommendation != "Contratar" {
		t.Errorf("Unexpected fields for Ana: %+v", sorted[0])
	}
	if !reflect.DeepEqual(sorted[0].Skills, []string{"Go", "SQL"}) {
		t.Errorf("Unexpected skills: %v", sorted[0].Skills)
	}
}

func TestReconcile_EnglishKeys(t *testing.T) {
	reply := "```json\n" + `{"candidates":[{"name":"Eva","source_file":"eva.pdf","score":"88.6","years_experience":"7","skills":"Go, Kubernetes , ","education":"MSc","recommendation":"Hire"}]}` + "\n```"

	parsed := Reconcile(reply, []models.Document{{Name: "eva.pdf"}}, DefaultOptions())
	if parsed.Kind != Parsed {
		t.Fatalf("Expected parsed result, got %s (%s)", parsed.Kind, parsed.Reason)
	}
	rec := parsed.Records[0]
	if rec.Score != 89 {
		t.Errorf("Expected rounded score 89, got %d", rec.Score)
	}
	if rec.YearsExperience == nil || *rec.YearsExperience != 7 {
		t.Errorf("Expected 7 years, got %v", rec.YearsExperience)
	}
	if !reflect.DeepEqual(rec.Skills, []string{"Go", "Kubernetes"}) {
		t.Errorf("Unexpected skills: %v", rec.Skills)
	}
}

func TestReconcile_LenientFields(t *testing.T) {
	reply := `{"candidates":[
		{"name":"Over","score":140},
		{"name":"Under","score":-5},
		{"score":60},
		{"name":"NoScore","years_experience":"unknown"}
	]}`

	docs := []models.Document{{Name: "a.pdf"}, {Name: "b.pdf"}, {Name: "c.pdf"}, {Name: "d.pdf"}}
	parsed := Reconcile(reply, docs, DefaultOptions())
	if parsed.Kind != Parsed {
		t.Fatalf("Expected parsed result, got %s (%s)", parsed.Kind, parsed.Reason)
	}

	tests := []struct {
		name  string
		score int
	}{
		{name: "Over", score: 100},
		{name: "Under", score: 0},
		{name: "Candidato 3", score: 60},
		{name: "NoScore", score: 75},
	}
	for i, tt := range tests {
		rec := parsed.Records[i]
		if rec.Name != tt.name || rec.Score != tt.score {
			t.Errorf("Record %d = %s/%d, want %s/%d", i, rec.Name, rec.Score, tt.name, tt.score)
		}
		if rec.Skills == nil {
			t.Errorf("Record %d has nil skills", i)
		}
	}
	if parsed.Records[3].YearsExperience != nil {
		t.Errorf("Expected unreadable years to be dropped")
	}
}

func TestReconcile_FallbackCases(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "unstructured prose", reply: "Ana seems strong and Luis is fine too."},
		{name: "malformed json", reply: "```json\n{\"candidates\": [ {\"name\": \"Ana\", }\n```"},
		{name: "missing candidates key", reply: "```json\n{\"results\": []}\n```"},
		{name: "candidates is not an array", reply: `{"candidates": {"name": "Ana"}}`},
		{name: "empty candidates", reply: `{"candidates": []}`},
		{name: "candidate is not an object", reply: `{"candidates": ["Ana"]}`},
		{name: "score is not a number", reply: `{"candidates": [{"name": "Ana", "score": "high"}]}`},
		{name: "name is not a string", reply: `{"candidates": [{"name": {"first": "Ana"}, "score": 90}]}`},
		{name: "skills is not a list", reply: `{"candidates": [{"name": "Ana", "skills": {"go": true}}]}`},
		{name: "top level array", reply: `[{"name": "Ana"}]`},
		{name: "empty reply", reply: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Reconcile(tt.reply, twoDocs(), DefaultOptions())
			if parsed.Kind != Fallback {
				t.Fatalf("Expected fallback, got %s", parsed.Kind)
			}
			if parsed.Raw != tt.reply {
				t.Errorf("Expected raw reply to be kept")
			}
			if parsed.Reason == "" {
				t.Errorf("Expected a fallback reason")
			}
			if len(parsed.Records) != 2 {
				t.Fatalf("Expected 2 placeholders, got %d", len(parsed.Records))
			}
			for i, rec := range parsed.Records {
				if rec.Score != 75 || rec.Recommendation != "Analizado" {
					t.Errorf("Unexpected placeholder %d: %+v", i, rec)
				}
			}
			if parsed.Records[0].Name != "Candidato 1" || parsed.Records[1].Name != "Candidato 2" {
				t.Errorf("Unexpected placeholder names: %v", parsed.Result().Names())
			}
			if parsed.Records[1].SourceFile != "luis.pdf" {
				t.Errorf("Expected placeholders to keep the source file")
			}

			// Sorting and projection keep working
			if rows := parsed.Result().Rows(); len(rows) != 2 {
				t.Errorf("Expected 2 rows, got %d", len(rows))
			}
		})
	}
}

func TestReconcile_CustomFallbackOptions(t *testing.T) {
	opts := Options{ScoreMin: 0, ScoreMax: 10, DefaultScore: 5, NamePrefix: "Candidate", Recommendation: "Review"}
	parsed := Reconcile("no json here", twoDocs(), opts)

	if parsed.Records[0].Name != "Candidate 1" || parsed.Records[0].Score != 5 || parsed.Records[0].Recommendation != "Review" {
		t.Errorf("Unexpected placeholder: %+v", parsed.Records[0])
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	replies := []string{
		"```json\n{\"candidates\":[{\"nombre\":\"Ana\",\"puntaje\":90},{\"nombre\":\"Luis\",\"puntaje\":70}]}\n```",
		"prose only",
	}
	for _, reply := range replies {
		first := Reconcile(reply, twoDocs(), DefaultOptions())
		second := Reconcile(reply, twoDocs(), DefaultOptions())
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Reconcile is not idempotent for %q", reply)
		}
	}
}

func TestReconcile_NoDocumentsFallbackIsEmpty(t *testing.T) {
	parsed := Reconcile("nothing", nil, DefaultOptions())
	if parsed.Kind != Fallback || len(parsed.Records) != 0 {
		t.Errorf("Expected empty fallback, got %+v", parsed)
	}
}

func TestKindString(t *testing.T) {
	if Parsed.String() != "parsed" || Fallback.String() != "fallback" {
		t.Errorf("Unexpected kind names: %s, %s", Parsed, Fallback)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{ScoreMin: 10, ScoreMax: 5, DefaultScore: 500}.withDefaults()
	if opts.ScoreMin != 0 || opts.ScoreMax != 100 {
		t.Errorf("Expected range reset to 0-100, got %d-%d", opts.ScoreMin, opts.ScoreMax)
	}
	if opts.DefaultScore != 100 {
		t.Errorf("Expected default score clamped to 100, got %d", opts.DefaultScore)
	}
	if !strings.HasPrefix(opts.NamePrefix, "Candidato") {
		t.Errorf("Expected default name prefix, got %q", opts.NamePrefix)
	}
}
