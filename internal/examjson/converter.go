// Package examjson structures transcribed exam Markdown into JSON.
package examjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/1323216010/exam/internal/domain"
	"github.com/1323216010/exam/internal/observability"
)

// UnknownType labels questions that carry no question_type.
const UnknownType = "unknown"

// Instruction precedes the Markdown in every request.
const Instruction = `Convert the following exam questions from Markdown into JSON.

Requirements:
1. Identify every question type (single choice, multiple choice, short answer, essay, ...), keeping the type names used in the document.
2. For every question extract the number, type, content, options (if any), answer (if any) and score (if any).
3. Keep every question complete and accurate.
4. Output JSON in exactly this shape:

{
  "exam_info": {
    "title": "exam title",
    "subject": "subject name",
    "code": "course code",
    "date": "exam date"
  },
  "questions": [
    {
      "question_number": "1",
      "question_type": "single choice",
      "content": "question text",
      "options": {"A": "option A", "B": "option B", "C": "option C", "D": "option D"},
      "answer": "B",
      "score": 1
    },
    {
      "question_number": "41",
      "question_type": "short answer",
      "content": "question text",
      "answer": "answer text",
      "score": 6
    }
  ]
}

Markdown:

`

// TypeCount is the number of questions of one type.
type TypeCount struct {
	Type  string
	Count int
}

// Result describes one converted file
type Result struct {
	InputPath  string
	OutputPath string
	Valid      bool // false when the raw model output was saved instead
	ParseError error
	Questions  int
	Types      []TypeCount // first-seen order
	Bytes      int
}

// BatchResult summarizes a multi-file run
type BatchResult struct {
	Total     int
	Succeeded int
	Failed    []string // base names
	Results   []*Result
}

// Converter sends Markdown to the AI service and saves the JSON it returns
type Converter struct {
	streamer domain.Streamer
	logger   *observability.Logger
}

// NewConverter creates a new converter
func NewConverter(streamer domain.Streamer, logger *observability.Logger) *Converter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Converter{streamer: streamer, logger: logger.WithOperation("tojson")}
}

// DefaultOutputPath returns mdPath with a .json extension.
func DefaultOutputPath(mdPath string) string {
	return strings.TrimSuffix(mdPath, filepath.Ext(mdPath)) + ".json"
}

// Convert structures mdPath and writes the JSON to outPath (or the default path).
// Invalid JSON from the model is saved verbatim and reported through Result.Valid.
func (c *Converter) Convert(ctx context.Context, mdPath, outPath string) (*Result, error) {
	log := c.logger.WithContext(ctx).WithDocument(mdPath)

	markdown, err := os.ReadFile(mdPath)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read %s", mdPath), err)
	}
	log.Info().Int("chars", utf8.RuneCount(markdown)).Msg("markdown loaded")

	text, err := c.complete(ctx, Instruction+string(markdown))
	if err != nil {
		return nil, err
	}

	if outPath == "" {
		outPath = DefaultOutputPath(mdPath)
	}
	res := &Result{InputPath: mdPath, OutputPath: outPath}

	extracted := ExtractJSON(text)
	out, err := Pretty([]byte(extracted))
	if err != nil {
		log.Warn().Err(err).Msg("model output is not valid JSON, saving raw text")
		res.ParseError = err
		out = []byte(extracted)
	} else {
		res.Valid = true
		res.Questions, res.Types = CountQuestions(out)
	}

	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to write %s", outPath), err)
	}
	res.Bytes = len(out)

	log.Info().Bool("valid", res.Valid).Int("questions", res.Questions).Str("output", outPath).Msg("json saved")
	return res, nil
}

// ConvertBatch converts each path in turn, continuing past failures.
func (c *Converter) ConvertBatch(ctx context.Context, paths []string, onResult func(path string, res *Result, err error)) *BatchResult {
	batch := &BatchResult{Total: len(paths)}
	for _, p := range paths {
		res, err := c.Convert(ctx, p, "")
		if onResult != nil {
			onResult(p, res, err)
		}
		if err != nil {
			c.logger.Error().Err(err).Str("file", p).Msg("conversion failed")
			batch.Failed = append(batch.Failed, filepath.Base(p))
			continue
		}
		batch.Succeeded++
		batch.Results = append(batch.Results, res)
	}
	return batch
}

// Glob returns files in dir matching pattern, sorted.
func Glob(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("bad pattern %q", pattern), err)
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (c *Converter) complete(ctx context.Context, prompt string) (string, error) {
	chunkCh := make(chan domain.Chunk, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		errCh <- c.streamer.Stream(ctx, domain.Request{Instruction: prompt, JSONOutput: true}, chunkCh)
	}()

	var b strings.Builder
	for chunk := range chunkCh {
		if chunk.Kind == domain.ChunkContent {
			b.WriteString(chunk.Text)
		}
	}
	if err := <-errCh; err != nil {
		return "", domain.APIError("structuring request failed", err)
	}
	return b.String(), nil
}

// ExtractJSON returns text from the first '{' to the last '}' inclusive, or text unchanged
// when there is no such pair.
func ExtractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// Pretty validates raw and re-indents it with two spaces, keeping key order and literal non-ASCII.
func Pretty(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CountQuestions counts entries of a top-level "questions" array per question_type.
func CountQuestions(doc []byte) (int, []TypeCount) {
	var exam struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(doc, &exam); err != nil {
		return 0, nil
	}

	var types []TypeCount
	index := map[string]int{}
	for _, q := range exam.Questions {
		qtype := UnknownType
		if s, ok := q["question_type"].(string); ok && s != "" {
			qtype = s
		}
		i, seen := index[qtype]
		if !seen {
			i = len(types)
			index[qtype] = i
			types = append(types, TypeCount{Type: qtype})
		}
		types[i].Count++
	}
	return len(exam.Questions), types
}
