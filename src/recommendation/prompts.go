package recommendation

const (
	GenerateSystemMessageTmpl = `You are an expert literacy coach who creates age-appropriate vocabulary suggestions for middle school students. Avoid profanity and overly mature language. Return JSON with a key 'recommendations' containing a list of objects. Each object must include the fields: 'word' (string), 'definition' (string), 'rationale' (string explaining why the student should learn the word), 'difficulty_score' (integer 1-10), and 'example_sentence' (string, age-appropriate, using the word correctly). Do not include any additional keys or commentary.`

	GeneratePromptTmpl = `Student grade level: {{.GradeLevel}}
Current vocabulary level estimate: {{.VocabularyLevel}}
Target recommendations: {{.TargetCount}} words
{{- if .BaselineList}}
Baseline vocabulary already familiar to the student (avoid duplicates): {{.BaselineList}}
{{- end}}
Student writing sample (cleaned):
{{.Excerpt}}`
)
