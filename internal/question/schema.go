package question

import (
	"fmt"
	"strings"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindList
)

// Field describes one key of the question JSON the model must return. The
// table below drives both the prompt's schema section and Normalize.
type Field struct {
	Name string
	Hint string
	kind fieldKind
	// fallback produces the value used when the model omits the field or
	// returns something unusable.
	fallback func(index int, requested Difficulty) string
	// accept validates and canonicalises a model value.
	accept func(v string) (string, bool)
	set    func(q *Question, v string)
}

func constant(s string) func(int, Difficulty) string {
	return func(int, Difficulty) string { return s }
}

// Fields is the question schema in prompt order.
var Fields = []Field{
	{
		Name:     "question",
		Hint:     "A clear, unambiguous interview question answerable from the document",
		fallback: func(i int, _ Difficulty) string { return fmt.Sprintf("Question %d", i+1) },
		set:      func(q *Question, v string) { q.Question = v },
	},
	{
		Name:     "answer",
		Hint:     "A thorough answer grounded in the document content",
		fallback: constant("Answer not provided"),
		set:      func(q *Question, v string) { q.Answer = v },
	},
	{
		Name:     "difficulty",
		Hint:     "The requested difficulty: easy, medium or hard",
		fallback: func(_ int, d Difficulty) string { return string(d) },
		accept: func(v string) (string, bool) {
			d, err := ParseDifficulty(v)
			return string(d), err == nil
		},
		set: func(q *Question, v string) { q.Difficulty = Difficulty(v) },
	},
	{
		Name:     "category",
		Hint:     "Primary assessment domain (Technical|Conceptual|Practical|Analytical|Behavioral)",
		fallback: constant("General"),
		set:      func(q *Question, v string) { q.Category = v },
	},
	{
		Name:     "cognitive_level",
		Hint:     "Bloom's taxonomy level (Remember|Understand|Apply|Analyze|Evaluate|Create)",
		fallback: constant(string(Understand)),
		accept: func(v string) (string, bool) {
			l, ok := parseCognitiveLevel(v)
			return string(l), ok
		},
		set: func(q *Question, v string) { q.CognitiveLevel = CognitiveLevel(v) },
	},
	{
		Name: "keywords",
		Hint: "Key terms from the document the question covers",
		kind: kindList,
	},
	{
		Name:     "source_context",
		Hint:     "The section or concept of the document the question comes from",
		fallback: constant("Document content"),
		set:      func(q *Question, v string) { q.SourceContext = v },
	},
	{
		Name:     "assessment_criteria",
		Hint:     "What a good answer demonstrates",
		fallback: constant("General knowledge assessment"),
		set:      func(q *Question, v string) { q.AssessmentCriteria = v },
	},
	{
		Name:     "follow_up_potential",
		Hint:     "Areas an interviewer could probe next",
		fallback: constant("None specified"),
		set:      func(q *Question, v string) { q.FollowUpPotential = v },
	},
	{
		Name:     "industry_relevance",
		Hint:     "Where this knowledge applies in practice",
		fallback: constant("General application"),
		set:      func(q *Question, v string) { q.IndustryRelevance = v },
	},
}

// Normalize builds a complete Question from one decoded array element.
// Missing, empty or invalid values are replaced by the field's default.
// index is the element's position and requested the difficulty asked for.
func Normalize(raw map[string]interface{}, index int, requested Difficulty) Question {
	q := Question{Keywords: []string{}}
	for _, f := range Fields {
		v := raw[f.Name]
		if f.kind == kindList {
			q.Keywords = toStrings(v)
			continue
		}

		s, ok := toText(v)
		if ok && f.accept != nil {
			s, ok = f.accept(s)
		}
		if !ok {
			s = f.fallback(index, requested)
		}
		f.set(&q, s)
	}
	return q
}

// toText reports false for values a caller should treat as absent.
func toText(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return fmt.Sprint(t), t != 0
	case bool:
		return fmt.Sprint(t), t
	default:
		return "", false
	}
}

func toStrings(v interface{}) []string {
	out := []string{}
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if s, ok := toText(item); ok {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(t, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
