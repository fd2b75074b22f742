package recommendation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/tmc/langchaingo/textsplitter"

	"wordbridge/src/log"
)

const (
	ResponseJSONKey      = "recommendations"
	MaxSampleChars       = 6000
	BaselineSummaryLimit = 25

	DefaultTargetBatchSize = 5
	DefaultTemperature     = 0.4
)

// ParseError is returned when the model response cannot be parsed into a
// valid batch of candidates. Retrying with the same prompt will not fix it.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error { return e.Err }

// ModelProvider produces a raw JSON object for a system/user message pair.
type ModelProvider interface {
	GenerateJSON(ctx context.Context, system, prompt string, temperature float64) (string, error)
}

// SubjectContext carries the student profile details embedded in the prompt.
type SubjectContext struct {
	GradeLevel      int
	VocabularyLevel int // zero means no estimate yet
	BaselineWords   []string
}

// TemplateData holds all the data needed for prompt template execution.
type TemplateData struct {
	GradeLevel      string
	VocabularyLevel string
	TargetCount     int
	BaselineList    string
	Excerpt         string
}

// Generator orchestrates prompt building, the model call, and response
// parsing into a batch of candidates.
type Generator struct {
	provider        ModelProvider
	targetBatchSize int
	temperature     float64
}

type Option func(g *Generator)

func WithTargetBatchSize(n int) Option {
	return func(g *Generator) {
		g.targetBatchSize = n
	}
}

func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

func NewGenerator(provider ModelProvider, opts ...Option) *Generator {
	g := &Generator{
		provider:        provider,
		targetBatchSize: DefaultTargetBatchSize,
		temperature:     DefaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns model-generated vocabulary candidates for the cleaned
// writing sample. Provider errors pass through unchanged so the caller can
// classify them; malformed responses come back as *ParseError.
func (g *Generator) Generate(ctx context.Context, sample string, subject SubjectContext) ([]Candidate, error) {
	required := g.requiredCount()

	system, prompt, err := g.buildPrompt(sample, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	log.Debug("requesting recommendations", "grade_level", subject.GradeLevel, "target", required)
	raw, err := g.provider.GenerateJSON(ctx, system, prompt, g.temperature)
	if err != nil {
		return nil, err
	}

	candidates, err := ParseCandidates(raw, required)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (g *Generator) requiredCount() int {
	if g.targetBatchSize > DefaultTargetBatchSize {
		return g.targetBatchSize
	}
	return DefaultTargetBatchSize
}

func (g *Generator) buildPrompt(sample string, subject SubjectContext) (string, string, error) {
	data := TemplateData{
		GradeLevel:      levelString(subject.GradeLevel),
		VocabularyLevel: levelString(subject.VocabularyLevel),
		TargetCount:     g.requiredCount(),
		BaselineList:    baselineSummary(subject.BaselineWords),
		Excerpt:         boundExcerpt(sample),
	}
	return executeTemplates(GenerateSystemMessageTmpl, GeneratePromptTmpl, data)
}

func executeTemplates(systemTmpl, promptTmpl string, data TemplateData) (string, string, error) {
	var systemBuf, promptBuf bytes.Buffer

	sysT := template.Must(template.New("system").Parse(systemTmpl))
	if err := sysT.Execute(&systemBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute system template: %w", err)
	}

	prmptT := template.Must(template.New("prompt").Parse(promptTmpl))
	if err := prmptT.Execute(&promptBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return systemBuf.String(), promptBuf.String(), nil
}

func levelString(level int) string {
	if level <= 0 {
		return "unknown"
	}
	return strconv.Itoa(level)
}

// baselineSummary deduplicates the baseline words case-insensitively and caps
// the list so the prompt stays small.
func baselineSummary(words []string) string {
	seen := make(map[string]bool, len(words))
	var unique []string
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, word)
		if len(unique) >= BaselineSummaryLimit {
			break
		}
	}
	return strings.Join(unique, ", ")
}

// boundExcerpt keeps the sample under MaxSampleChars, preferring a split on
// natural boundaries over a hard mid-word cut.
func boundExcerpt(sample string) string {
	if len(sample) <= MaxSampleChars {
		return sample
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(MaxSampleChars),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(sample)
	if err != nil || len(chunks) == 0 {
		return sample[:MaxSampleChars] + "..."
	}
	return chunks[0] + "..."
}

// ParseCandidates parses the raw model JSON into candidates, rejecting the
// whole batch on any structural violation rather than recovering partially.
func ParseCandidates(payload string, required int) ([]Candidate, error) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, &ParseError{Message: "failed to parse JSON from model response", Err: err}
	}

	var items []interface{}
	switch v := decoded.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		list, ok := v[ResponseJSONKey].([]interface{})
		if !ok {
			return nil, &ParseError{Message: "model did not return a list of recommendations"}
		}
		items = list
	default:
		return nil, &ParseError{Message: "unexpected response format from model"}
	}

	seen := make(map[string]bool, len(items))
	candidates := make([]Candidate, 0, len(items))

	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ParseError{Message: "recommendation entry is not an object"}
		}

		word, err := stringField(entry, "word")
		if err != nil {
			return nil, err
		}
		if word == "" {
			return nil, &ParseError{Message: "recommendation entry has no word"}
		}

		definition, err := stringField(entry, "definition")
		if err != nil {
			return nil, err
		}
		rationale, err := stringField(entry, "rationale")
		if err != nil {
			return nil, err
		}
		example, err := stringField(entry, "example_sentence")
		if err != nil {
			return nil, err
		}

		key := strings.ToLower(word)
		if seen[key] {
			continue
		}
		seen[key] = true

		candidates = append(candidates, Candidate{
			Word:            word,
			Definition:      definition,
			Rationale:       rationale,
			DifficultyScore: intField(entry, "difficulty_score"),
			ExampleSentence: example,
			Status:          StatusPending,
		})
	}

	if len(candidates) < required {
		return nil, &ParseError{
			Message: fmt.Sprintf("model returned %d recommendations; %d required", len(candidates), required),
		}
	}
	return candidates, nil
}

func stringField(entry map[string]interface{}, key string) (string, error) {
	value, ok := entry[key]
	if !ok || value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", &ParseError{Message: fmt.Sprintf("recommendation field %q is not a string", key)}
	}
	return strings.TrimSpace(s), nil
}

// intField extracts a numeric field best-effort; anything non-numeric yields
// zero, which the content filter later substitutes with the default.
func intField(entry map[string]interface{}, key string) int {
	switch v := entry[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}
