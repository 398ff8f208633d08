package rag

import (
	"context"
	"fmt"

	"github.com/xxxsen/ragchat/internal/ai"
)

// fakeEmbedder returns the vector registered for a text, or defaultVec when
// no explicit mapping exists.
type fakeEmbedder struct {
	vectors    map[string][]float32
	defaultVec []float32
	failAll    bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failAll {
		return nil, fmt.Errorf("embedding backend down")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if vec, ok := f.vectors[text]; ok {
			out = append(out, vec)
			continue
		}
		if f.defaultVec != nil {
			out = append(out, f.defaultVec)
			continue
		}
		out = append(out, []float32{1, 0, 0})
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

// fakeGenerator serves a fixed completion and a fixed fragment stream.
type fakeGenerator struct {
	completion  string
	completeErr error
	fragments   []string
	streamErr   error
	// failures counts down; while positive, Stream fails before emitting.
	failures int
	calls    int
}

func (f *fakeGenerator) Complete(ctx context.Context, msgs []ai.Message) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completion, nil
}

func (f *fakeGenerator) Stream(ctx context.Context, msgs []ai.Message, onFragment func(string) error) error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("transient stream failure")
	}
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, fragment := range f.fragments {
		if err := onFragment(fragment); err != nil {
			return err
		}
	}
	return nil
}
