package question

import (
	"strings"
	"text/template"
)

type promptData struct {
	Filename       string
	DocumentLength int
	Context        string
	Count          int
	Difficulty     Difficulty
	Language       string
	Fields         []Field
}

var difficultyGuidance = map[Difficulty]string{
	Easy:   "basic recall and understanding (Bloom's Remember, Understand)",
	Medium: "application and analysis of concepts (Bloom's Apply, Analyze)",
	Hard:   "synthesis and critical evaluation (Bloom's Evaluate, Create)",
}

var funcs = template.FuncMap{
	"guidance": func(d Difficulty) string { return difficultyGuidance[d] },
}

var ragPrompt = template.Must(template.New("rag").Funcs(funcs).Parse(`
You are an expert interviewer who writes assessment questions from source material.

DOCUMENT
- Filename: {{.Filename}}
- Length: {{.DocumentLength}} characters
- The excerpts below were retrieved from the document by topic.

EXCERPTS:
"""
{{.Context}}
"""

TASK
Write exactly {{.Count}} interview questions at {{.Difficulty}} difficulty, targeting {{guidance .Difficulty}}.
Mix factual, conceptual, practical and critical-thinking questions, and cover different parts of the excerpts.
Every question must be answerable from the excerpts alone; do not rely on outside knowledge.
Write every question and answer in {{.Language}}. Keep the JSON keys in English.

OUTPUT
Return only a JSON array. Each element is an object with these keys:
{{range .Fields}}- "{{.Name}}": {{.Hint}}
{{end}}
Return exactly {{.Count}} objects and no text outside the array.
`))

var directPrompt = template.Must(template.New("direct").Funcs(funcs).Parse(`
You are an expert at preparing candidates for interviews and tests.

Based on the document content below, write exactly {{.Count}} interview questions with answers at {{.Difficulty}} difficulty ({{guidance .Difficulty}}).

Document ({{.Filename}}):
"""
{{.Context}}
"""

Write every question and answer in {{.Language}}. Keep the JSON keys in English.

Return only a JSON array. Each element is an object with these keys:
{{range .Fields}}- "{{.Name}}": {{.Hint}}
{{end}}
Cover different aspects of the content and return exactly {{.Count}} objects with no additional text.
`))

func render(t *template.Template, data promptData) (string, error) {
	data.Fields = Fields
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}
