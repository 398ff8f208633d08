package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrUnavailable = errors.New("ai provider unavailable")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat prompt, ordered oldest first.
type Message struct {
	Role    Role
	Content string
}

type IChatProvider interface {
	Name() string
	Complete(ctx context.Context, model string, msgs []Message) (string, error)
	// Stream invokes onFragment for every emitted text fragment, in order.
	// A non-nil error from onFragment aborts the stream.
	Stream(ctx context.Context, model string, msgs []Message, onFragment func(string) error) error
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type IVisionProvider interface {
	Name() string
	Describe(ctx context.Context, model string, image []byte, mimeType string, prompt string) (string, error)
}

// IGenerator binds a chat provider to a fixed model.
type IGenerator interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
	Stream(ctx context.Context, msgs []Message, onFragment func(string) error) error
}

// IEmbedder binds an embedding provider to a fixed model.
type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// IDescriber binds a vision provider to a fixed model.
type IDescriber interface {
	Describe(ctx context.Context, image []byte, mimeType string, prompt string) (string, error)
}

type generator struct {
	provider IChatProvider
	model    string
}

func NewGenerator(p IChatProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Complete(ctx context.Context, msgs []Message) (string, error) {
	return g.provider.Complete(ctx, g.model, msgs)
}

func (g *generator) Stream(ctx context.Context, msgs []Message, onFragment func(string) error) error {
	return g.provider.Stream(ctx, g.model, msgs, onFragment)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text)
}

func (e *embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.provider.EmbedBatch(ctx, e.model, texts)
}

func (e *embedder) ModelName() string {
	return e.model
}

type describer struct {
	provider IVisionProvider
	model    string
}

func NewDescriber(p IVisionProvider, model string) IDescriber {
	return &describer{provider: p, model: model}
}

func (d *describer) Describe(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	return d.provider.Describe(ctx, d.model, image, mimeType, prompt)
}

type ChatFactory func(args interface{}) (IChatProvider, error)
type EmbedFactory func(args interface{}) (IEmbedProvider, error)
type VisionFactory func(args interface{}) (IVisionProvider, error)

var (
	chatRegistry   = map[string]ChatFactory{}
	embedRegistry  = map[string]EmbedFactory{}
	visionRegistry = map[string]VisionFactory{}
)

func Register(name string, factory ChatFactory) {
	key := registryKey(name)
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := registryKey(name)
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func RegisterVision(name string, factory VisionFactory) {
	key := registryKey(name)
	if key == "" || factory == nil {
		return
	}
	visionRegistry[key] = factory
}

func NewChatProvider(name string, args interface{}) (IChatProvider, error) {
	key := registryKey(name)
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := registryKey(name)
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai embed provider: %s", name)
	}
	return factory(args)
}

func NewVisionProvider(name string, args interface{}) (IVisionProvider, error) {
	key := registryKey(name)
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := visionRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai vision provider: %s", name)
	}
	return factory(args)
}

func registryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
