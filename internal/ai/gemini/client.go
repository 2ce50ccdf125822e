package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-matcher/internal/utils"
)

const (
	defaultModel = "gemini-2.5-flash"
	// maxQuotaDelay is the longest server-requested backoff worth waiting for.
	maxQuotaDelay = 30 * time.Second
	temperature   = 0.2
	jsonMIMEType  = "application/json"
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	chats  chatCreator
	model  string
	retry  utils.RetryPolicy
	logger *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
// Unset retry fields fall back to utils.DefaultRetryPolicy.
func NewGenerator(ctx context.Context, apiKey, model string, retry utils.RetryPolicy, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	defaults := utils.DefaultRetryPolicy()
	if retry.Attempts <= 0 {
		retry.Attempts = defaults.Attempts
	}
	if retry.Delay <= 0 {
		retry.Delay = defaults.Delay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:  genaiChats{chats: client.Chats},
		model:  model,
		retry:  retry,
		logger: logger,
	}, nil
}

// GenerateContent sends message under the system instruction and returns the
// JSON reply. Temporary API failures are retried.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	return g.generate(ctx, system, message, jsonMIMEType)
}

// PlainText is like GenerateContent but asks for free text.
func (g *Generator) PlainText(ctx context.Context, system, message string) (string, error) {
	return g.generate(ctx, system, message, "")
}

func (g *Generator) generate(ctx context.Context, system, message, mimeType string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](temperature),
		ResponseMIMEType: mimeType,
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	var output string
	err := utils.Retry(ctx, g.retry, func(ctx context.Context) error {
		text, err := g.send(ctx, config, message)
		if err != nil {
			return classify(err)
		}
		output = text
		return nil
	}, func(attempt int, err error) {
		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.retry.Attempts),
			zap.Error(err),
		)
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	return output, nil
}

func (g *Generator) send(ctx context.Context, config *genai.GenerateContentConfig, message string) (string, error) {
	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", err
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

// classify marks errors that are pointless to retry as permanent.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return utils.Permanent(err)
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if delay, ok := requestedDelay(apiErr.Message); ok && delay > maxQuotaDelay {
			return utils.Permanent(fmt.Errorf("quota delay %s is too long: %w", delay, err))
		}
		return err
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return err
	default:
		return utils.Permanent(err)
	}
}

func requestedDelay(message string) (time.Duration, bool) {
	match := retryAfterPattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}
