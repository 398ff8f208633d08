package rag

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xxxsen/ragchat/internal/model"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chunker splits decoded document text into overlapping passages. Plain and
// pdf text use a recursive boundary strategy; markdown is split at header
// boundaries first, falling back to the recursive strategy when the document
// has no headers.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size int, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
	}
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Split(content string, typ model.ChunkType) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if typ == model.ChunkTypeMarkdown {
		if sections := c.splitMarkdown(content); len(sections) > 0 {
			return sections
		}
	}
	return c.splitRecursive(content)
}

func (c *Chunker) splitRecursive(content string) []string {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}),
	)
	parts, err := splitter.SplitText(content)
	if err != nil {
		parts = []string{content}
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// splitMarkdown walks the parsed document and starts a new section at every
// level 1-3 heading, prefixing each section with its heading line. Returns nil
// when the document has no such headings.
func (c *Chunker) splitMarkdown(content string) []string {
	source := []byte(content)
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	type section struct {
		heading string
		body    []string
	}
	var sections []section
	current := section{}
	sawHeading := false

	flush := func() {
		if current.heading == "" && len(current.body) == 0 {
			return
		}
		sections = append(sections, current)
		current = section{}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok && heading.Level <= 3 {
			flush()
			sawHeading = true
			current.heading = strings.Repeat("#", heading.Level) + " " + string(heading.Text(source))
			continue
		}
		if txt := blockText(node, source); txt != "" {
			current.body = append(current.body, txt)
		}
	}
	flush()

	if !sawHeading {
		return nil
	}

	var out []string
	for _, sec := range sections {
		body := strings.Join(sec.body, "\n\n")
		joined := strings.TrimSpace(sec.heading + "\n" + body)
		if joined == "" {
			continue
		}
		if len(joined) <= c.size {
			out = append(out, joined)
			continue
		}
		// Oversized sections fall back to the recursive strategy.
		out = append(out, c.splitRecursive(joined)...)
	}
	return out
}

func blockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
