package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"deck-backend/internal/evaluator"
)

const defaultThreshold = 7.0

// Client implements evaluator.Evaluator using a vision-capable chat model.
type Client struct {
	client    sdk.Client
	model     string
	threshold float64
}

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// Threshold is quoted to the model as the acceptance cutoff.
	Threshold float64
}

// NewClient constructs a new OpenAI vision evaluator.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("VLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithRequestTimeout(timeout),
		// evaluator.Retrying owns retries.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Client{
		client:    sdk.NewClient(reqOpts...),
		model:     opts.Model,
		threshold: threshold,
	}, nil
}

// EvaluateRefinement asks the model for positioning fixes on one slide.
func (c *Client) EvaluateRefinement(ctx context.Context, slideIndex int, png []byte) (evaluator.RefinementFeedback, error) {
	content, err := c.complete(ctx, "refinement", refinementSystem(c.threshold), refinementUser(slideIndex), png)
	if err != nil {
		return evaluator.RefinementFeedback{}, err
	}
	return parseRefinement(content, slideIndex)
}

// EvaluateValidation asks the model for a quality score on one slide.
func (c *Client) EvaluateValidation(ctx context.Context, slideIndex, slideCount int, png []byte) (evaluator.ValidationFeedback, error) {
	content, err := c.complete(ctx, "validation", validationSystemPrompt, validationUser(slideIndex, slideCount), png)
	if err != nil {
		return evaluator.ValidationFeedback{}, err
	}
	return parseValidation(content, slideIndex)
}

func (c *Client) complete(ctx context.Context, mode, system, user string, png []byte) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model: sdk.ChatModel(c.model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(system),
			sdk.UserMessage([]sdk.ChatCompletionContentPartUnionParam{
				sdk.TextContentPart(user),
				sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{
					URL: pngDataURL(png),
				}),
			}),
		},
	}
	if !isGPT5(c.model) {
		params.Temperature = sdk.Float(0)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai %s request: %w", mode, err)
	}
	logUsage(c.model, mode, resp.Usage)
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

func pngDataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func logUsage(model, mode string, usage sdk.CompletionUsage) {
	log.Printf("vlm response model=%s mode=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, mode, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

var _ evaluator.Evaluator = (*Client)(nil)
