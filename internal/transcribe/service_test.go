package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1323216010/exam/internal/domain"
)

// scriptedStreamer replays chunks then returns err.
type scriptedStreamer struct {
	chunks []domain.Chunk
	err    error
	got    domain.Request
}

func (s *scriptedStreamer) Stream(ctx context.Context, req domain.Request, chunkCh chan<- domain.Chunk) error {
	s.got = req
	for _, c := range s.chunks {
		select {
		case chunkCh <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func writeImage(t *testing.T, name string) domain.PageImage {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("fake-png"), 0644))
	return domain.PageImage{PageNumber: 2, ImagePath: p}
}

func content(s string) domain.Chunk   { return domain.Chunk{Kind: domain.ChunkContent, Text: s} }
func reasoning(s string) domain.Chunk { return domain.Chunk{Kind: domain.ChunkReasoning, Text: s} }

func TestTranscribe_Success(t *testing.T) {
	streamer := &scriptedStreamer{chunks: []domain.Chunk{content("# 语文"), content("\n\n1. 默写")}}
	svc := NewService(streamer, nil)

	res := svc.Transcribe(context.Background(), writeImage(t, "page_2.png"))

	require.True(t, res.Succeeded())
	assert.Equal(t, 2, res.PageNumber)
	assert.Equal(t, "# 语文\n\n1. 默写", res.Text)

	assert.Equal(t, PageInstruction, streamer.got.Instruction)
	require.Len(t, streamer.got.Images, 1)
	assert.Equal(t, "image/png", streamer.got.Images[0].MIMEType)
	assert.Equal(t, []byte("fake-png"), streamer.got.Images[0].Data)
	assert.False(t, streamer.got.JSONOutput)
}

func TestTranscribe_ReasoningExcluded(t *testing.T) {
	streamer := &scriptedStreamer{chunks: []domain.Chunk{
		reasoning("let me look at the header"),
		content("A"),
		reasoning("now the table"),
		content("B"),
	}}

	res := NewService(streamer, nil).Transcribe(context.Background(), writeImage(t, "p.png"))

	require.True(t, res.Succeeded())
	assert.Equal(t, "AB", res.Text)
}

func TestTranscribe_MidStreamFailureDiscardsPartial(t *testing.T) {
	streamErr := domain.APIError("stream failed", errors.New("connection reset"))
	streamer := &scriptedStreamer{chunks: []domain.Chunk{content("half a page")}, err: streamErr}

	res := NewService(streamer, nil).Transcribe(context.Background(), writeImage(t, "p.png"))

	assert.False(t, res.Succeeded())
	assert.Empty(t, res.Text)
	assert.ErrorIs(t, res.Err, streamErr)
}

func TestTranscribe_EmptyIsFailure(t *testing.T) {
	streamer := &scriptedStreamer{chunks: []domain.Chunk{reasoning("nothing here")}}

	res := NewService(streamer, nil).Transcribe(context.Background(), writeImage(t, "p.png"))

	assert.False(t, res.Succeeded())
	assert.ErrorIs(t, res.Err, domain.ErrEmptyTranscription)
}

func TestTranscribe_MissingImage(t *testing.T) {
	streamer := &scriptedStreamer{chunks: []domain.Chunk{content("never sent")}}
	image := domain.PageImage{PageNumber: 5, ImagePath: filepath.Join(t.TempDir(), "gone.png")}

	res := NewService(streamer, nil).Transcribe(context.Background(), image)

	assert.False(t, res.Succeeded())
	assert.Equal(t, 5, res.PageNumber)
	assert.True(t, domain.IsType(res.Err, domain.ErrorTypeIO))
}

func TestTranscribe_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	streamer := &scriptedStreamer{chunks: []domain.Chunk{content("x"), content("y")}}

	res := NewService(streamer, nil).Transcribe(ctx, writeImage(t, "p.png"))

	// The unbuffered sends may race the cancellation; either way no partial text survives.
	if !res.Succeeded() {
		assert.Empty(t, res.Text)
	}
}

func TestTranscribeDocument(t *testing.T) {
	a := writeImage(t, "page_1.png")
	b := writeImage(t, "page_2.jpg")
	streamer := &scriptedStreamer{chunks: []domain.Chunk{reasoning("r"), content("whole doc")}}

	text, err := NewService(streamer, nil).TranscribeDocument(context.Background(), []domain.PageImage{a, b})

	require.NoError(t, err)
	assert.Equal(t, "whole doc", text)
	assert.Equal(t, DocumentInstruction, streamer.got.Instruction)
	require.Len(t, streamer.got.Images, 2)
	assert.Equal(t, "image/jpeg", streamer.got.Images[1].MIMEType)
}

func TestTranscribeDocument_Errors(t *testing.T) {
	svc := NewService(&scriptedStreamer{err: errors.New("boom")}, nil)

	_, err := svc.TranscribeDocument(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoPages)

	_, err = svc.TranscribeDocument(context.Background(), []domain.PageImage{writeImage(t, "p.png")})
	assert.True(t, domain.IsType(err, domain.ErrorTypeTranscription))
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", MIMEType("a.png"))
	assert.Equal(t, "image/jpeg", MIMEType("a.JPG"))
	assert.Equal(t, "image/png", MIMEType("noext"))
}
