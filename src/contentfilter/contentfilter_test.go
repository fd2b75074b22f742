package contentfilter_test

import (
	"os"
	"path/filepath"
	"testing"

	"wordbridge/src/contentfilter"
	"wordbridge/src/recommendation"
)

func candidate(word string) recommendation.Candidate {
	return recommendation.Candidate{
		Word:            word,
		Definition:      "a test definition",
		Rationale:       "a test rationale",
		DifficultyScore: 5,
		ExampleSentence: "a test sentence",
	}
}

func TestFilterDropsProfaneWord(t *testing.T) {
	f := contentfilter.New(true, "")

	got := f.Filter([]recommendation.Candidate{
		candidate("luminous"),
		candidate("fuck"),
		candidate("resilient"),
	})

	if len(got) != 2 {
		t.Fatalf("Filter() kept %d candidates, want 2", len(got))
	}
	for _, c := range got {
		if c.Word == "fuck" {
			t.Errorf("Filter() kept profane word %q", c.Word)
		}
	}
}

func TestFilterDropsProfaneDefinition(t *testing.T) {
	f := contentfilter.New(true, "")

	bad := candidate("luminous")
	bad.Definition = "this shit glows"

	got := f.Filter([]recommendation.Candidate{bad, candidate("resilient")})
	if len(got) != 1 || got[0].Word != "resilient" {
		t.Errorf("Filter() = %v, want only resilient", got)
	}
}

func TestFilterDisabledKeepsEverything(t *testing.T) {
	f := contentfilter.New(false, "")

	got := f.Filter([]recommendation.Candidate{candidate("fuck"), candidate("luminous")})
	if len(got) != 2 {
		t.Errorf("Filter() kept %d candidates, want 2", len(got))
	}
}

func TestFilterClampsDifficultyAndSetsStatus(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  int
	}{
		{name: "zero becomes minimum", score: 0, want: 1},
		{name: "negative becomes minimum", score: -3, want: 1},
		{name: "above range capped", score: 15, want: 10},
		{name: "in range untouched", score: 7, want: 7},
	}

	f := contentfilter.New(true, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("luminous")
			c.DifficultyScore = tt.score
			c.Status = ""

			got := f.Filter([]recommendation.Candidate{c})
			if len(got) != 1 {
				t.Fatalf("Filter() kept %d candidates, want 1", len(got))
			}
			if got[0].DifficultyScore != tt.want {
				t.Errorf("DifficultyScore = %d, want %d", got[0].DifficultyScore, tt.want)
			}
			if got[0].Status != recommendation.StatusPending {
				t.Errorf("Status = %q, want %q", got[0].Status, recommendation.StatusPending)
			}
		})
	}
}

func TestFilterDropsContentlessCandidates(t *testing.T) {
	f := contentfilter.New(true, "")

	empty := candidate("")
	numeric := candidate("1234")
	noDefinition := candidate("luminous")
	noDefinition.Definition = "   "

	got := f.Filter([]recommendation.Candidate{empty, numeric, noDefinition, candidate("resilient")})
	if len(got) != 1 || got[0].Word != "resilient" {
		t.Errorf("Filter() = %v, want only resilient", got)
	}
}

func TestFilterTrimsFields(t *testing.T) {
	f := contentfilter.New(true, "")

	c := candidate("  luminous  ")
	c.Definition = " full of light "

	got := f.Filter([]recommendation.Candidate{c})
	if len(got) != 1 {
		t.Fatalf("Filter() kept %d candidates, want 1", len(got))
	}
	if got[0].Word != "luminous" {
		t.Errorf("Word = %q, want %q", got[0].Word, "luminous")
	}
	if got[0].Definition != "full of light" {
		t.Errorf("Definition = %q, want %q", got[0].Definition, "full of light")
	}
}

func TestFilterSupplementaryTermsList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")
	if err := os.WriteFile(path, []byte("zorblat\n\nquibnix\n"), 0o644); err != nil {
		t.Fatalf("failed to write terms file: %v", err)
	}

	f := contentfilter.New(true, path)

	got := f.Filter([]recommendation.Candidate{
		candidate("zorblat"),
		candidate("quibnix"),
		candidate("luminous"),
	})
	if len(got) != 1 || got[0].Word != "luminous" {
		t.Errorf("Filter() = %v, want only luminous", got)
	}
}

func TestFilterMissingSupplementaryFileTolerated(t *testing.T) {
	f := contentfilter.New(true, filepath.Join(t.TempDir(), "does-not-exist.txt"))

	got := f.Filter([]recommendation.Candidate{candidate("luminous")})
	if len(got) != 1 {
		t.Errorf("Filter() kept %d candidates, want 1", len(got))
	}
}
