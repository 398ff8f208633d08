package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragchat/internal/model"
)

func TestChunkerShortText(t *testing.T) {
	c := NewChunker(500, 50)
	chunks := c.Split("hello world", model.ChunkTypeText)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker(500, 50)
	assert.Empty(t, c.Split("", model.ChunkTypeText))
	assert.Empty(t, c.Split("   \n  ", model.ChunkTypeText))
}

func TestChunkerLongTextBounded(t *testing.T) {
	c := NewChunker(100, 20)
	paragraph := "The quick brown fox jumps over the lazy dog."
	text := strings.Repeat(paragraph+"\n\n", 20)
	chunks := c.Split(text, model.ChunkTypeText)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk)
		assert.LessOrEqual(t, len(chunk), 100)
	}
}

func TestChunkerMarkdownHeaders(t *testing.T) {
	c := NewChunker(500, 50)
	doc := "# Title\n\nIntro paragraph here.\n\n## Section One\n\nBody of section one.\n\n### Deep\n\nDeep body."
	chunks := c.Split(doc, model.ChunkTypeMarkdown)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[0], "# Title"))
	assert.Contains(t, chunks[0], "Intro paragraph here.")
	assert.True(t, strings.HasPrefix(chunks[1], "## Section One"))
	assert.True(t, strings.HasPrefix(chunks[2], "### Deep"))
}

func TestChunkerMarkdownWithoutHeadersFallsBack(t *testing.T) {
	c := NewChunker(500, 50)
	doc := "Just a plain paragraph.\n\nAnother paragraph."
	chunks := c.Split(doc, model.ChunkTypeMarkdown)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.False(t, strings.HasPrefix(chunk, "#"))
	}
}
