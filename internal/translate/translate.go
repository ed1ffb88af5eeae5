// Package translate produces a localized copy of bot metadata with Google's
// Gemini API using JSON schema output.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/botmeta/internal/config"
	apperrors "github.com/edgard/botmeta/internal/errors"
	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/metadata"
)

// Request describes one translation. APIKey overrides the configured key.
type Request struct {
	APIKey     string
	SourceLang string
	TargetLang string
	Metadata   metadata.BotMetadata
}

type generateFunc func(ctx context.Context, apiKey, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client translates metadata.
type Client struct {
	cfg      config.GeminiConfig
	log      *slog.Logger
	generate generateFunc
}

var metadataSchema = &genai.Schema{
	Type:        genai.TypeObject,
	Description: "Bot metadata translated into the target language.",
	Properties: map[string]*genai.Schema{
		"name":              {Type: genai.TypeString, Description: "Translated bot name."},
		"description":       {Type: genai.TypeString, Description: "Translated long description."},
		"short_description": {Type: genai.TypeString, Description: "Translated short description."},
		"commands": {
			Type:        genai.TypeArray,
			Description: "Commands in the original order with untranslated command names.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"command":     {Type: genai.TypeString, Description: "Original command name, unchanged."},
					"description": {Type: genai.TypeString, Description: "Translated command description."},
				},
				Required: []string{"command", "description"},
			},
		},
	},
	Required: []string{"name", "description", "short_description", "commands"},
}

// NewClient creates a translation client. No connection is made until Translate.
func NewClient(cfg config.GeminiConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		log:      logger.With("component", "translator"),
		generate: generateWithGenAI,
	}
}

func generateWithGenAI(ctx context.Context, apiKey, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return gi.Models.GenerateContent(ctx, model, contents, cfg)
}

// Translate returns req.Metadata translated into req.TargetLang. Command names
// are always taken from the source, by position.
func (c *Client) Translate(ctx context.Context, req Request) (metadata.BotMetadata, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if apiKey == "" {
		return metadata.BotMetadata{}, apperrors.NewValidationError("gemini API key is required", nil)
	}
	if !languages.Valid(req.SourceLang) || !languages.Valid(req.TargetLang) {
		return metadata.BotMetadata{}, apperrors.NewValidationError(
			fmt.Sprintf("unsupported language pair %q -> %q", req.SourceLang, req.TargetLang), nil)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	temperature := c.cfg.Temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: SystemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    metadataSchema,
	}
	contents := []*genai.Content{genai.NewContentFromText(buildPrompt(req), genai.RoleUser)}

	c.log.DebugContext(ctx, "Translating metadata",
		"source_lang", req.SourceLang, "target_lang", req.TargetLang, "command_count", len(req.Metadata.Commands))

	resp, err := c.generate(ctx, apiKey, c.cfg.Model, contents, genCfg)
	if err != nil {
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) {
			c.log.ErrorContext(ctx, "Gemini translation call failed", "code", apiErr.Code, "error", err)
		} else {
			c.log.ErrorContext(ctx, "Gemini translation call failed", "error", err)
		}
		return metadata.BotMetadata{}, fmt.Errorf("gemini translation failed: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini returned no usable content", "error", err)
		return metadata.BotMetadata{}, err
	}

	var out metadata.BotMetadata
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse translation JSON", "error", err, "response_text", text)
		return metadata.BotMetadata{}, fmt.Errorf("invalid translation JSON received: %w", err)
	}

	out.Commands, err = restoreCommands(req.Metadata.Commands, out.Commands)
	if err != nil {
		return metadata.BotMetadata{}, err
	}

	c.log.InfoContext(ctx, "Translated metadata", "source_lang", req.SourceLang, "target_lang", req.TargetLang)
	return out, nil
}

func buildPrompt(req Request) string {
	var cmds strings.Builder
	for _, cmd := range req.Metadata.Commands {
		fmt.Fprintf(&cmds, "- %s: %s\n", cmd.Command, cmd.Description)
	}
	return fmt.Sprintf(promptTemplate,
		languages.Name(req.SourceLang)+" ("+req.SourceLang+")",
		languages.Name(req.TargetLang)+" ("+req.TargetLang+")",
		req.Metadata.Name,
		req.Metadata.ShortDescription,
		req.Metadata.Description,
		cmds.String(),
	)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("translation blocked by safety filter: %s", reason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned empty content")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini returned empty text")
	}
	return text, nil
}

// restoreCommands keeps the translated descriptions but puts back the source
// command names, which must never change.
func restoreCommands(src, translated []metadata.BotCommand) ([]metadata.BotCommand, error) {
	if len(src) != len(translated) {
		return nil, fmt.Errorf("translation returned %d commands, expected %d", len(translated), len(src))
	}
	out := make([]metadata.BotCommand, len(src))
	for i := range src {
		out[i] = metadata.BotCommand{Command: src[i].Command, Description: translated[i].Description}
	}
	return out, nil
}
