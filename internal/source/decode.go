// Package source fetches quiz questions from the quiz API or a local file.
package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const questionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["scenario", "options", "correct_answer"],
    "properties": {
      "scenario":       {"type": "string"},
      "options":        {"type": "array", "items": {"type": "string"}},
      "correct_answer": {"type": "string"},
      "explanation":    {"type": ["string", "null"]}
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(questionsSchema))
})

// Decode parses a question payload. It accepts a bare JSON array or the
// dataset envelope {"questions": [...]}, and rejects payloads that do not
// match the question schema.
func Decode(body []byte) ([]quiz.Question, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty question payload")
	}

	if raw[0] == '{' {
		var envelope struct {
			Questions json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("parse question envelope: %w", err)
		}
		if len(envelope.Questions) == 0 {
			return nil, fmt.Errorf("question envelope has no \"questions\" field")
		}
		raw = envelope.Questions
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	var questions []quiz.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if questions == nil {
		questions = []quiz.Question{}
	}
	return questions, nil
}

// Validate checks a JSON question array against the question schema.
func Validate(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile question schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("parse questions: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("malformed questions: %s", strings.Join(msgs, "; "))
}
