package question

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrMalformedResponse = errors.New("no JSON array found in model response")
	ErrInvalidJSON       = errors.New("model response is not valid JSON")
	ErrNotAnArray        = errors.New("model response is not a JSON array")
)

// ExtractJSONArray returns the text from the first '[' to the last ']'
// inclusive, dropping any prose around it.
func ExtractJSONArray(text string) (string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return "", ErrMalformedResponse
	}
	return text[start : end+1], nil
}

// ParseQuestions extracts, decodes and normalizes a model response. A count
// other than want is logged, not rejected.
func ParseQuestions(ctx context.Context, text string, want int, requested Difficulty) ([]Question, error) {
	slice, err := ExtractJSONArray(text)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(slice), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	items, ok := decoded.([]interface{})
	if !ok {
		return nil, ErrNotAnArray
	}

	if len(items) != want {
		slog.WarnContext(ctx, "model returned unexpected question count", "expected", want, "got", len(items))
	}

	questions := make([]Question, len(items))
	for i, item := range items {
		obj, _ := item.(map[string]interface{})
		questions[i] = Normalize(obj, i, requested)
	}
	return questions, nil
}
