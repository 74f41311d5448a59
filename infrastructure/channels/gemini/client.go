// Package gemini adapts the Google Gemini API to the text completion port.
package gemini

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

// Client wraps the genai SDK for completion and embedding calls.
type Client struct {
	client         *genai.Client
	model          string
	embeddingModel string
	metrics        ports.MetricsRecorder
	logger         *zap.Logger
}

// New creates a Gemini-backed text completion client
func New(ctx context.Context, apiKey, model, embeddingModel string, metrics ports.MetricsRecorder, logger *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pkgerrors.NewExternal("creating gemini client: " + err.Error())
	}
	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		metrics:        metrics,
		logger:         logger,
	}, nil
}

// Generate returns a completion for the prompt
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		c.metrics.RecordChannelCall("gemini", "failure", time.Since(start).Seconds())
		return "", pkgerrors.NewExternal("gemini completion: " + err.Error())
	}

	text := resp.Text()
	if text == "" {
		c.metrics.RecordChannelCall("gemini", "failure", time.Since(start).Seconds())
		return "", pkgerrors.NewExternal("gemini returned an empty completion")
	}

	c.metrics.RecordChannelCall("gemini", "success", time.Since(start).Seconds())
	c.logger.Debug("completion generated",
		zap.Int("promptChars", len(prompt)),
		zap.Int("responseChars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

// Embed returns a vector embedding for the text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), nil)
	if err != nil {
		c.metrics.RecordChannelCall("gemini-embed", "failure", time.Since(start).Seconds())
		return nil, pkgerrors.NewExternal("gemini embedding: " + err.Error())
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		c.metrics.RecordChannelCall("gemini-embed", "failure", time.Since(start).Seconds())
		return nil, pkgerrors.NewExternal("gemini returned an empty embedding")
	}

	c.metrics.RecordChannelCall("gemini-embed", "success", time.Since(start).Seconds())
	return resp.Embeddings[0].Values, nil
}
