package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/playgroundai/playground-api/internal/config"
)

const (
	defaultChatModelName  = "gemini-1.5-pro-exp-0801"
	defaultTitleModelName = "gemini-1.5-flash-latest"

	// Bounded timeouts so a stuck upstream call cannot pin a request forever.
	completionTimeout = 60 * time.Second
	titleTimeout      = 15 * time.Second

	titleSystemInstruction = "You are a helpful assistant that generates concise titles for chat conversations. " +
		"The title should be 3-5 words maximum. Just return the title itself, nothing else."
)

// EngineService wraps the external generative-language engine. It exposes the
// two calls the rest of the system needs: completing a conversation turn over
// replayed history, and synthesizing a transcript title.
type EngineService struct {
	client            *genai.Client
	systemInstruction string
}

func NewEngineService(ctx context.Context, cfg *config.Config) (*EngineService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &EngineService{
		client:            client,
		systemInstruction: loadSystemInstruction(cfg.SystemInstructionFile),
	}, nil
}

// loadSystemInstruction reads the instruction template once at startup and
// substitutes the {current_date} placeholder. A missing file just means no
// system instruction.
func loadSystemInstruction(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Could not read system instruction file %s: %v", path, err)
		}
		return ""
	}
	date := time.Now().Format("Monday, January 02, 2006")
	return strings.ReplaceAll(string(data), "{current_date}", date)
}

func (s *EngineService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

func (s *EngineService) chatModel() *genai.GenerativeModel {
	model := s.client.GenerativeModel(defaultChatModelName)

	temp := float32(1.15)
	topP := float32(0.95)
	topK := int32(55)
	maxTokens := int32(2000)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		TopP:             &topP,
		TopK:             &topK,
		MaxOutputTokens:  &maxTokens,
		ResponseMIMEType: "text/plain",
	}

	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}

	if s.systemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(s.systemInstruction)},
		}
	}

	return model
}

// Complete opens a chat session seeded with the replayed history and submits
// message as the newest user turn.
func (s *EngineService) Complete(ctx context.Context, history []*genai.Content, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	chatSession := s.chatModel().StartChat()
	chatSession.History = history

	resp, err := chatSession.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("gemini chat response: %w", err)
	}
	return text, nil
}

// GenerateTitle asks the engine for a short title for a conversation opened by
// the given text.
func (s *EngineService) GenerateTitle(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	model := s.client.GenerativeModel(defaultTitleModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(titleSystemInstruction)},
	}

	temp := float32(0.3)
	maxTokens := int32(20)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	prompt := fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a conversation that starts with: %q.", text)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini title generation request failed: %w", err)
	}

	title, err := responseText(resp)
	if err != nil {
		return "", fmt.Errorf("gemini title response: %w", err)
	}
	return strings.Trim(title, "\"'\n\r\t ."), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return sb.String(), nil
}
