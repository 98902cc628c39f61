// Package openai talks to OpenAI-compatible embedding and chat endpoints.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/infrastructure/llm"
	"github.com/kirillkom/uniconnect/internal/infrastructure/resilience"
)

const defaultTemperature float32 = 0.7

type Client struct {
	api         *openai.Client
	genModel    string
	embedModel  string
	temperature float32
	executor    *resilience.Executor
}

type Options struct {
	BaseURL            string
	Timeout            time.Duration
	Temperature        *float32
	ResilienceExecutor *resilience.Executor
}

func New(apiKey, genModel, embedModel string, options Options) *Client {
	config := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(options.BaseURL); base != "" {
		config.BaseURL = strings.TrimRight(base, "/")
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	temperature := defaultTemperature
	if options.Temperature != nil {
		temperature = *options.Temperature
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		genModel:    genModel,
		embedModel:  embedModel,
		temperature: temperature,
		executor:    options.ResilienceExecutor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) ModelID() string {
	return "openai/" + e.client.embedModel
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := e.client.run(ctx, "embeddings", func(callCtx context.Context) error {
		out, err := e.client.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(e.client.embedModel),
		})
		if err != nil {
			return fmt.Errorf("openai create embeddings: %w", err)
		}
		resp = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, req domain.GenerationRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemFraming != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemFraming})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: llm.UserMessage(req)})

	temperature := g.client.temperature
	var resp openai.ChatCompletionResponse
	err := g.client.run(ctx, "chat", func(callCtx context.Context) error {
		out, err := g.client.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       g.client.genModel,
			Messages:    messages,
			Temperature: &temperature,
		})
		if err != nil {
			return fmt.Errorf("openai create chat completion: %w", err)
		}
		resp = out
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) run(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai."+operation, call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.WrapTemporary("openai "+operation, err, classifyOpenAIError)
	}
	return nil
}
