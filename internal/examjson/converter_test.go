package examjson

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1323216010/exam/internal/domain"
)

type replyStreamer struct {
	reply string
	err   error
	got   domain.Request
}

func (r *replyStreamer) Stream(_ context.Context, req domain.Request, chunkCh chan<- domain.Chunk) error {
	r.got = req
	chunkCh <- domain.Chunk{Kind: domain.ChunkReasoning, Text: "{not part of the answer}"}
	if r.reply != "" {
		chunkCh <- domain.Chunk{Kind: domain.ChunkContent, Text: r.reply}
	}
	return r.err
}

func writeMarkdown(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestExtractJSON(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "Here you go:\n{\"a\":{\"b\":2}}\nDone", want: `{"a":{"b":2}}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "no braces at all", want: "no braces at all"},
		{in: "} backwards {", want: "} backwards {"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractJSON(tt.in), "input %q", tt.in)
	}
}

func TestCountQuestions(t *testing.T) {
	doc := []byte(`{"questions":[
		{"question_type":"单项选择题"},
		{"question_type":"多项选择题"},
		{"question_type":"单项选择题"},
		{"content":"no type"}
	]}`)

	n, types := CountQuestions(doc)
	assert.Equal(t, 4, n)
	assert.Equal(t, []TypeCount{
		{Type: "单项选择题", Count: 2},
		{Type: "多项选择题", Count: 1},
		{Type: UnknownType, Count: 1},
	}, types)

	n, types = CountQuestions([]byte(`{"exam_info":{}}`))
	assert.Zero(t, n)
	assert.Empty(t, types)
}

func TestPretty_KeepsOrderAndNonASCII(t *testing.T) {
	out, err := Pretty([]byte(`{"z":"语文","a":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"z\": \"语文\",\n  \"a\": [\n    1,\n    2\n  ]\n}", string(out))

	_, err = Pretty([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestConvert_ValidJSON(t *testing.T) {
	md := writeMarkdown(t, "exam.md", "## 一、单项选择题\n1. ...")
	streamer := &replyStreamer{reply: "Sure:\n{\"exam_info\":{\"title\":\"期中\"},\"questions\":[{\"question_type\":\"单项选择题\"}]}"}

	res, err := NewConverter(streamer, nil).Convert(context.Background(), md, "")
	require.NoError(t, err)

	assert.True(t, res.Valid)
	assert.Equal(t, strings.TrimSuffix(md, ".md")+".json", res.OutputPath)
	assert.Equal(t, 1, res.Questions)

	saved, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(saved), "{\n  \"exam_info\""))
	assert.Contains(t, string(saved), "期中")

	assert.True(t, streamer.got.JSONOutput)
	assert.True(t, strings.HasPrefix(streamer.got.Instruction, Instruction))
	assert.True(t, strings.HasSuffix(streamer.got.Instruction, "1. ..."))
}

func TestConvert_InvalidJSONSavesRaw(t *testing.T) {
	md := writeMarkdown(t, "exam.md", "# x")
	out := filepath.Join(t.TempDir(), "custom.json")
	streamer := &replyStreamer{reply: `prefix {"questions": [ } suffix`}

	res, err := NewConverter(streamer, nil).Convert(context.Background(), md, out)
	require.NoError(t, err)

	assert.False(t, res.Valid)
	assert.Error(t, res.ParseError)
	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `{"questions": [ }`, string(saved))
}

func TestConvert_Errors(t *testing.T) {
	c := NewConverter(&replyStreamer{reply: "{}"}, nil)
	_, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "missing.md"), "")
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))

	c = NewConverter(&replyStreamer{err: errors.New("429 too many requests")}, nil)
	_, err = c.Convert(context.Background(), writeMarkdown(t, "a.md", "x"), "")
	assert.True(t, domain.IsType(err, domain.ErrorTypeAPI))
}

func TestConvertBatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.md", "a.md", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("# q"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0755))

	files, err := Glob(dir, "*.md")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.md")}, files)

	files = append(files, filepath.Join(dir, "gone.md"))

	var seen []string
	batch := NewConverter(&replyStreamer{reply: `{"questions":[]}`}, nil).
		ConvertBatch(context.Background(), files, func(p string, _ *Result, _ error) { seen = append(seen, p) })

	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, []string{"gone.md"}, batch.Failed)
	assert.Equal(t, files, seen)
}
