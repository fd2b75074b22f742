package recommendation

// StatusPending is the status every freshly generated candidate carries;
// review workflows move it along later, outside this pipeline.
const StatusPending = "pending"

const (
	MinDifficultyScore = 1
	MaxDifficultyScore = 10
)

// Candidate is one word-level suggestion produced for an upload's student.
type Candidate struct {
	Word            string `json:"word"`
	Definition      string `json:"definition"`
	Rationale       string `json:"rationale"`
	DifficultyScore int    `json:"difficulty_score"`
	ExampleSentence string `json:"example_sentence"`
	Status          string `json:"status"`
}

// ClampDifficulty normalizes a difficulty score into its valid closed range.
// Absent or non-numeric scores arrive as zero and get the minimum.
func ClampDifficulty(score int) int {
	if score < MinDifficultyScore {
		return MinDifficultyScore
	}
	if score > MaxDifficultyScore {
		return MaxDifficultyScore
	}
	return score
}
