package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Schema は構造化出力のスキーマ。SDKの型をそのまま使う。
type Schema = genai.Schema

// NewGeminiCall はGemini APIを呼び出すCallFuncを生成する。
// 応答はSchemaが指定されていればapplication/jsonで要求する。
func NewGeminiCall(ctx context.Context, apiKey string) (CallFunc, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return func(ctx context.Context, model string, req Request) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model,
			[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
			buildConfig(req),
		)
		if err != nil {
			return "", fmt.Errorf("gemini generate (%s): %w", model, err)
		}
		return resp.Text(), nil
	}, nil
}

// buildConfig はRequestからGenerateContentConfigを組み立てる。
func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	return cfg
}
