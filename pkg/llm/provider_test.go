package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(chunks ...Chunk) <-chan Chunk {
	ch := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestCollect(t *testing.T) {
	var seen []string
	text, err := Collect(context.Background(), feed(Chunk{Text: "Hel"}, Chunk{}, Chunk{Text: "lo"}), func(s string) {
		seen = append(seen, s)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, []string{"Hel", "lo"}, seen)
}

func TestCollectErrorDiscardsPartialText(t *testing.T) {
	boom := errors.New("boom")
	text, err := Collect(context.Background(), feed(Chunk{Text: "partial"}, Chunk{Err: boom}), nil)

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, text)
}

func TestCollectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, make(chan Chunk), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply(t *testing.T) {
	got := Apply(Options{Temperature: 0.7, Model: "base"}, WithModel("override"), WithMaxTokens(64))

	assert.Equal(t, Options{Temperature: 0.7, Model: "override", MaxTokens: 64}, got)
	assert.Equal(t, 0.2, Apply(Options{}, WithTemperature(0.2)).Temperature)
}
