// Package llm は Google Gemini を用いたナラティブ生成クライアントを提供します。
package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini はプロンプトからテキストを生成するクライアントです。
// 呼び出しごとに設定されたタイムアウトを適用します。
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

// NewGemini は Gemini クライアントを作成します。
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, logger *log.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Generate はプロンプトを送信し、生成されたテキストを返します。
// 応答が空の場合はエラーを返します。
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no response generated from model %s", g.model)
	}

	g.logger.Printf("narrative generated model=%s promptChars=%d responseChars=%d durationMs=%d",
		g.model, len(prompt), text.Len(), time.Since(start).Milliseconds())
	return text.String(), nil
}
