package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// StoryboardScene is one entry in a generated storyboard: an image prompt
// for the still and the narration script that accompanies it.
type StoryboardScene struct {
	Prompt string `json:"prompt"`
	Script string `json:"script"`
}

// storyboardResponse is the JSON envelope the model is asked to produce.
type storyboardResponse struct {
	Storyboard []StoryboardScene `json:"storyboard"`
}

const storyboardSystemTemplate = `You are a cartoonist who is creating a storyboard for an %s video. Use the provided content to generate image prompts for the storyboard, associated with a relevant script for each scene to be narrated in the video. The video should be %s in length. Be sure that each scene lasts for less than 4 seconds, when converted to speech.
Respond in the form of a JSON object with the following structure:
{"storyboard": [{"prompt": "", "script": ""}, {"prompt": "", "script": ""}, ...]}`

// GenerateStoryboard turns raw content into an ordered list of scene
// prompts and narration scripts using JSON-mode chat completion.
func (s *OpenAIService) GenerateStoryboard(ctx context.Context, content, videoType, duration string) ([]StoryboardScene, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(storyboardSystemTemplate, videoType, duration),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("video content: %s", content),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content

	var parsed storyboardResponse
	if err := json.Unmarshal([]byte(rawContent), &parsed); err != nil {
		log.Printf("[OpenAI storyboard] parse failed: %v (raw: %s)", err, truncate(rawContent, 500))
		return nil, fmt.Errorf("failed to parse storyboard: %w", err)
	}

	if len(parsed.Storyboard) == 0 {
		return nil, fmt.Errorf("storyboard has no scenes")
	}

	for i, scene := range parsed.Storyboard {
		if scene.Prompt == "" || scene.Script == "" {
			return nil, fmt.Errorf("storyboard scene %d missing prompt or script", i)
		}
	}

	log.Printf("[OpenAI storyboard] generated %d scenes", len(parsed.Storyboard))

	return parsed.Storyboard, nil
}

// truncate limits a string to maxLen characters for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
