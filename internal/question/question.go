// Package question turns document text into structured interview questions.
package question

import (
	"errors"
	"fmt"
	"strings"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var ErrInvalidDifficulty = errors.New("difficulty must be easy, medium or hard")

// ParseDifficulty accepts the three difficulty labels in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case Easy, Medium, Hard:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
}

// CognitiveLevel is a Bloom's taxonomy level.
type CognitiveLevel string

const (
	Remember   CognitiveLevel = "Remember"
	Understand CognitiveLevel = "Understand"
	Apply      CognitiveLevel = "Apply"
	Analyze    CognitiveLevel = "Analyze"
	Evaluate   CognitiveLevel = "Evaluate"
	Create     CognitiveLevel = "Create"
)

var cognitiveLevels = []CognitiveLevel{Remember, Understand, Apply, Analyze, Evaluate, Create}

func parseCognitiveLevel(s string) (CognitiveLevel, bool) {
	for _, l := range cognitiveLevels {
		if strings.EqualFold(string(l), strings.TrimSpace(s)) {
			return l, true
		}
	}
	return "", false
}

type Question struct {
	Question           string         `json:"question"`
	Answer             string         `json:"answer"`
	Difficulty         Difficulty     `json:"difficulty"`
	Category           string         `json:"category"`
	CognitiveLevel     CognitiveLevel `json:"cognitive_level,omitempty"`
	Keywords           []string       `json:"keywords"`
	SourceContext      string         `json:"source_context"`
	AssessmentCriteria string         `json:"assessment_criteria,omitempty"`
	FollowUpPotential  string         `json:"follow_up_potential,omitempty"`
	IndustryRelevance  string         `json:"industry_relevance,omitempty"`
}

const DefaultLanguage = "en"

var languages = map[string]string{
	"en": "English",
	"tr": "Turkish",
	"nl": "Dutch",
}

var ErrUnsupportedLanguage = errors.New("unsupported language")

// LanguageName maps a language code to the name used in prompts.
func LanguageName(code string) (string, error) {
	name, ok := languages[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return name, nil
}
