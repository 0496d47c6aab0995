package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// FileSource reads questions from a JSON or YAML file on every load.
type FileSource struct {
	path string
}

// NewFileSource creates a source for path. YAML is chosen by the .yaml or
// .yml extension; anything else is parsed as JSON.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Questions(_ context.Context) ([]quiz.Question, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
	}

	questions, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return questions, nil
}

// CacheKey identifies this source's payload in a shared cache.
func (s *FileSource) CacheKey() string {
	return "quiz:questions:file:" + s.path
}

// yamlToJSON re-encodes a YAML document so it goes through the same schema
// validation as API payloads.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}
