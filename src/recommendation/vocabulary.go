package recommendation

import "math"

const (
	MinVocabularyLevel = 200
	MaxVocabularyLevel = 1000
)

var gradeBaselineLevels = map[int]int{
	6: 450,
	7: 550,
	8: 650,
}

const defaultBaselineLevel = 500

// BaselineLevelForGrade returns the starting vocabulary-level estimate for a
// grade, falling back to a middle-of-the-road default for unknown grades.
func BaselineLevelForGrade(gradeLevel int) int {
	if level, ok := gradeBaselineLevels[gradeLevel]; ok {
		return level
	}
	return defaultBaselineLevel
}

// ComputeVocabularyLevel derives a new vocabulary-level estimate from the
// batch's mean difficulty. The grade baseline shifts 40 points per difficulty
// point away from the midpoint, clamped into the valid range. On re-analysis
// the previous estimate dominates a 70/30 blend so a single upload cannot
// swing the level wildly.
func ComputeVocabularyLevel(gradeLevel, previousLevel int, analyzedBefore bool, candidates []Candidate) int {
	base := BaselineLevelForGrade(gradeLevel)

	var sum, count int
	for _, c := range candidates {
		sum += ClampDifficulty(c.DifficultyScore)
		count++
	}
	avg := 5.0
	if count > 0 {
		avg = float64(sum) / float64(count)
	}

	proposed := int(math.Round(float64(base) + (avg-5)*40))
	if proposed < MinVocabularyLevel {
		proposed = MinVocabularyLevel
	}
	if proposed > MaxVocabularyLevel {
		proposed = MaxVocabularyLevel
	}

	if previousLevel <= 0 || !analyzedBefore {
		return proposed
	}
	return int(math.Round(float64(previousLevel)*0.7 + float64(proposed)*0.3))
}
