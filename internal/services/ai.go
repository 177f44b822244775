package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/patchpilot/patchpilot/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kaptinlin/jsonrepair"
	"github.com/ollama/ollama/api"
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

// LineComment is a single review finding attributed to one line of one file.
type LineComment struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Comment string `json:"comment"`
}

type AIService struct {
	db     *gorm.DB
	config *config.AIConfig
}

func NewAIService(db *gorm.DB, cfg *config.AIConfig) *AIService {
	return &AIService{db: db, config: cfg}
}

// BatchReviewRequest carries the concatenated raw text of every fragment that
// missed the cache, plus an optional per-repository prompt override.
type BatchReviewRequest struct {
	RepositoryID uint
	Diffs        string
	CustomPrompt string
}

// BatchReviewResult is either a structured set of line comments or, when the
// backend response cannot be parsed as such, a single free-text review
// covering the whole batch.
type BatchReviewResult struct {
	Comments     []LineComment
	Fallback     bool
	FallbackText string
}

// ReviewBatch sends one batch of diff fragments to the AI backend and parses
// the response. The cache is never touched here.
func (s *AIService) ReviewBatch(ctx context.Context, req *BatchReviewRequest) (*BatchReviewResult, error) {
	var repo models.Repository
	if err := s.db.First(&repo, req.RepositoryID).Error; err != nil {
		return nil, fmt.Errorf("repository not found: %w", err)
	}

	prompt := s.getPromptForRepository(&repo, req.CustomPrompt)
	prompt = strings.ReplaceAll(prompt, diffsPlaceholder, req.Diffs)

	logger.Infof("[AI] Prompt length: %d chars, batch diff length: %d chars", len(prompt), len(req.Diffs))

	llmConfigs := s.getOrderedLLMConfigs(&repo)
	if len(llmConfigs) == 0 {
		return nil, fmt.Errorf("no LLM configuration available")
	}

	var lastErr error
	for i, llmConfig := range llmConfigs {
		logger.Infof("[AI] Attempting LLM %d/%d: %s (model: %s)", i+1, len(llmConfigs), llmConfig.Name, llmConfig.Model)

		content, err := callWithBackoff(ctx, func(ctx context.Context) (string, error) {
			return s.callLLM(ctx, &llmConfig, prompt)
		})
		if err == nil {
			logger.Infof("[AI] Success with LLM: %s, response length: %d chars", llmConfig.Name, len(content))
			return parseBatchResult(content), nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var backendErr *BackendError
		if isNonRetryable(err, &backendErr) {
			logger.Warnf("[AI] LLM %s rejected the request (status=%d), not trying others: %v",
				llmConfig.Name, backendErr.StatusCode, err)
			return nil, err
		}
		logger.Warnf("[AI] LLM %s exhausted retries: %v, trying next...", llmConfig.Name, err)
	}

	return nil, fmt.Errorf("all LLMs failed, last error: %w", lastErr)
}

func isNonRetryable(err error, target **BackendError) bool {
	be, ok := err.(*BackendError)
	if !ok {
		return false
	}
	*target = be
	return !be.Retryable()
}

// parseBatchResult parses the backend response as a JSON array of line
// comments; malformed JSON goes through a repair pass first. Anything still
// unparseable becomes a whole-batch fallback review.
func parseBatchResult(content string) *BatchReviewResult {
	raw := extractJSONArray(content)
	if raw != "" {
		var comments []LineComment
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			if repaired, repErr := jsonrepair.JSONRepair(raw); repErr == nil {
				if err2 := json.Unmarshal([]byte(repaired), &comments); err2 == nil {
					return structuredResult(comments)
				}
			}
		} else {
			return structuredResult(comments)
		}
	}

	logger.Warnf("[AI] Response not parseable as line comments, using free-text fallback (%d chars)", len(content))
	return &BatchReviewResult{
		Fallback:     true,
		FallbackText: strings.TrimSpace(content),
	}
}

func structuredResult(comments []LineComment) *BatchReviewResult {
	// Entries without a file attribution are useless downstream.
	kept := comments[:0]
	for _, c := range comments {
		if strings.TrimSpace(c.File) != "" && strings.TrimSpace(c.Comment) != "" {
			kept = append(kept, c)
		}
	}
	return &BatchReviewResult{Comments: kept}
}

// extractJSONArray pulls the outermost JSON array out of a response that may
// be wrapped in code fences or prose.
func extractJSONArray(content string) string {
	s := strings.TrimSpace(content)
	if fenced := strings.Index(s, "```"); fenced != -1 {
		s = s[fenced+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

func (s *AIService) getOrderedLLMConfigs(repo *models.Repository) []models.LLMConfig {
	var configs []models.LLMConfig

	if repo.LLMConfigID != nil {
		var repoConfig models.LLMConfig
		if err := s.db.Where("id = ? AND is_active = ?", *repo.LLMConfigID, true).First(&repoConfig).Error; err == nil {
			configs = append(configs, repoConfig)
		}
	}

	var defaultConfig models.LLMConfig
	if err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&defaultConfig).Error; err == nil {
		if len(configs) == 0 || configs[0].ID != defaultConfig.ID {
			configs = append(configs, defaultConfig)
		}
	}

	var backupConfigs []models.LLMConfig
	existingIDs := make(map[uint]bool)
	for _, c := range configs {
		existingIDs[c.ID] = true
	}
	s.db.Where("is_active = ?", true).Order("id ASC").Find(&backupConfigs)
	for _, c := range backupConfigs {
		if !existingIDs[c.ID] {
			configs = append(configs, c)
		}
	}

	if len(configs) == 0 && s.config.APIKey != "" {
		configs = append(configs, models.LLMConfig{
			Name:    "fallback",
			BaseURL: s.config.BaseURL,
			APIKey:  s.config.APIKey,
			Model:   s.config.Model,
		})
	}

	return configs
}

func (s *AIService) getPromptForRepository(repo *models.Repository, customPrompt string) string {
	var prompt string

	if customPrompt != "" {
		logger.Infof("[AI] Using custom prompt from request")
		prompt = customPrompt
	} else if repo.CustomPrompt != "" {
		logger.Infof("[AI] Using repository custom prompt")
		prompt = repo.CustomPrompt
	} else if repo.PromptTemplateID != nil {
		var tmpl models.PromptTemplate
		if err := s.db.First(&tmpl, *repo.PromptTemplateID).Error; err == nil {
			logger.Infof("[AI] Using linked prompt template: %s (ID: %d)", tmpl.Name, tmpl.ID)
			prompt = tmpl.Content
		}
	}

	if prompt == "" {
		var defaultPrompt models.PromptTemplate
		if err := s.db.Where("is_default = ?", true).First(&defaultPrompt).Error; err == nil {
			prompt = defaultPrompt.Content
		} else {
			prompt = models.DefaultReviewPrompt
		}
	}

	if !strings.Contains(prompt, diffsPlaceholder) {
		prompt = prompt + "\n\nDiff:\n" + diffsPlaceholder
	}

	return prompt
}

// callLLM dispatches to the provider-specific function based on the Provider field
func (s *AIService) callLLM(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	logger.Infof("[AI] Using provider: %s, model: %s, baseURL: %s", llmConfig.Provider, llmConfig.Model, llmConfig.BaseURL)

	switch llmConfig.Provider {
	case "anthropic":
		return s.callAnthropic(ctx, llmConfig, prompt)
	case "ollama":
		return s.callOllama(ctx, llmConfig, prompt)
	case "gemini":
		return s.callGemini(ctx, llmConfig, prompt)
	case "azure":
		return s.callAzure(ctx, llmConfig, prompt)
	default:
		// openai and other OpenAI-compatible services
		return s.callOpenAI(ctx, llmConfig, prompt)
	}
}

// callOpenAI handles OpenAI and OpenAI-compatible APIs (including custom endpoints)
func (s *AIService) callOpenAI(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	clientConfig := openai.DefaultConfig(llmConfig.APIKey)
	if llmConfig.BaseURL != "" {
		clientConfig.BaseURL = llmConfig.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	temperature := float32(0.3)
	if llmConfig.Temperature > 0 {
		temperature = float32(llmConfig.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

// callAnthropic handles the Anthropic API using the native SDK
func (s *AIService) callAnthropic(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(llmConfig.APIKey),
	)

	maxTokens := int64(llmConfig.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	model := llmConfig.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return content, nil
}

// callOllama handles the Ollama API using the native SDK
func (s *AIService) callOllama(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	baseURL := llmConfig.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := llmConfig.Model
	if model == "" {
		model = "llama3"
	}

	var content strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Options: map[string]interface{}{
			"temperature": llmConfig.Temperature,
		},
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Ollama API error: %w", err)
	}

	return content.String(), nil
}

// callGemini handles the Google Gemini API using the native SDK
func (s *AIService) callGemini(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: llmConfig.APIKey,
	})
	if err != nil {
		return "", fmt.Errorf("Gemini client error: %w", err)
	}

	model := llmConfig.Model
	if model == "" {
		model = "gemini-3.0-flash"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	return resp.Text(), nil
}

// callAzure handles Azure OpenAI using its special configuration
func (s *AIService) callAzure(ctx context.Context, llmConfig *models.LLMConfig, prompt string) (string, error) {
	// Azure requires BaseURL format: https://{resource-name}.openai.azure.com
	// Model field is used as deployment name
	cfg := openai.DefaultAzureConfig(llmConfig.APIKey, llmConfig.BaseURL)
	client := openai.NewClientWithConfig(cfg)

	temperature := float32(0.3)
	if llmConfig.Temperature > 0 {
		temperature = float32(llmConfig.Temperature)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("Azure OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from Azure OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
