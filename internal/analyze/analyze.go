// Package analyze turns a meal description and/or photo into a draft
// nutrient record using the Gemini API with a structured-output schema.
package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sadopc/nutrilog/internal/record"
	"github.com/sadopc/nutrilog/internal/retry"
)

const (
	// MaxImageBytes caps inline photo payloads. Larger images are rejected
	// before any network attempt.
	MaxImageBytes = 5 << 20

	DefaultModel = "gemini-2.5-flash"

	defaultImageMIME = "image/jpeg"

	// photoDescription stands in for the description field when only an
	// image was provided.
	photoDescription = "(photo entry)"

	systemInstruction = "You are a professional nutrition analyst. " +
		"Given a photo and/or a free-text description of a meal, provide an objective, " +
		"reasonable estimate of its nutrients. The output must be a single JSON object. " +
		"If you cannot be certain, give your best estimate. " +
		"Nutrient values must be plain numbers without units."
)

var (
	ErrInvalidInput    = errors.New("analyze: a description or an image is required")
	ErrPayloadTooLarge = errors.New("analyze: image exceeds the 5 MiB limit")
	ErrAnalysisFailed  = errors.New("analyze: response did not match the expected shape")
	// ErrServiceError wraps the service's final non-success reply, as opposed
	// to a transport error, which propagates unwrapped.
	ErrServiceError = errors.New("analyze: service returned an error")
)

// responseSchema constrains the model to the fixed record shape.
var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"meal_name": {Type: genai.TypeString, Description: "A short name for the meal, e.g. Beef noodle lunch"},
		"calories":  {Type: genai.TypeNumber, Description: "Total energy (kcal)"},
		"protein":   {Type: genai.TypeNumber, Description: "Protein (g)"},
		"fat":       {Type: genai.TypeNumber, Description: "Fat (g)"},
		"carbs":     {Type: genai.TypeNumber, Description: "Carbohydrates (g)"},
	},
	Required: []string{"meal_name", "calories", "protein", "fat", "carbs"},
}

// generator is the slice of the genai client the analyzer calls.
// *genai.Models satisfies it.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// callResult separates "the service replied, unsuccessfully" from a
// successful reply. Transport failures travel as plain errors.
type callResult struct {
	resp   *genai.GenerateContentResponse
	apiErr *genai.APIError
}

// Client performs resilient meal analysis calls.
type Client struct {
	gen     generator
	model   string
	logger  *zap.Logger
	invoker retry.Invoker[callResult]
}

// New builds a client around an initialized genai client.
func New(gc *genai.Client, model string, logger *zap.Logger) *Client {
	return newWithGenerator(gc.Models, model, logger)
}

func newWithGenerator(gen generator, model string, logger *zap.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		gen:    gen,
		model:  model,
		logger: logger,
		invoker: retry.Invoker[callResult]{
			Retryable: func(r callResult) bool { return r.apiErr != nil },
		},
	}
}

// SetModel switches the analysis model for subsequent calls. Safe under the
// UI's single-threaded event loop; not synchronized beyond that.
func (c *Client) SetModel(model string) {
	if model != "" {
		c.model = model
	}
}

// Analyze submits the meal for analysis and returns a normalized draft
// record. The call is retried internally with exponential backoff and may
// take tens of seconds wall-clock before giving up.
func (c *Client) Analyze(ctx context.Context, description string, image []byte, imageMIME string) (record.Record, error) {
	description = strings.TrimSpace(description)
	if description == "" && len(image) == 0 {
		return record.Record{}, ErrInvalidInput
	}
	if len(image) > MaxImageBytes {
		return record.Record{}, ErrPayloadTooLarge
	}

	contents, config := c.buildRequest(description, image, imageMIME)

	c.logger.Info("analysis started",
		zap.String("model", c.model),
		zap.Int("description_len", len(description)),
		zap.Int("image_bytes", len(image)))

	res, err := c.invoker.Invoke(ctx, func(ctx context.Context) (callResult, error) {
		resp, err := c.gen.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) {
				return callResult{apiErr: &apiErr}, nil
			}
			return callResult{}, err
		}
		return callResult{resp: resp}, nil
	})
	if err != nil {
		c.logger.Warn("analysis transport failure", zap.Error(err))
		return record.Record{}, err
	}
	if res.apiErr != nil {
		c.logger.Warn("analysis rejected by service",
			zap.Int("code", res.apiErr.Code),
			zap.String("message", res.apiErr.Message))
		return record.Record{}, fmt.Errorf("%w: %s", ErrServiceError, res.apiErr.Message)
	}

	draft, err := draftFromPayload(res.resp.Text(), description, len(image) > 0)
	if err != nil {
		c.logger.Warn("analysis payload unusable", zap.Error(err))
		return record.Record{}, err
	}

	c.logger.Info("analysis complete",
		zap.String("meal", draft.MealName),
		zap.Int("calories", draft.Calories))
	return draft, nil
}

func (c *Client) buildRequest(description string, image []byte, imageMIME string) ([]*genai.Content, *genai.GenerateContentConfig) {
	var parts []*genai.Part
	if len(image) > 0 {
		mime := imageMIME
		if mime == "" {
			mime = defaultImageMIME
		}
		parts = append(parts, genai.NewPartFromBytes(image, mime))
	}
	parts = append(parts, genai.NewPartFromText(userQuery(description)))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema,
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config
}

func userQuery(description string) string {
	if description == "" {
		description = "(no text description, use the photo)"
	}
	return fmt.Sprintf(
		"Analyze this meal (refer to the photo if one is attached): %s. "+
			"Name the meal and estimate its calories, protein, fat and carbohydrates.",
		description)
}

// draftFromPayload normalizes the structured payload into a draft record.
// Every numeric field defaults to 0 when missing or non-numeric and is
// rounded to the nearest non-negative integer; a missing meal name falls
// back to a prefix of the description. A payload that is not a JSON object
// at all is an ErrAnalysisFailed.
func draftFromPayload(raw, description string, hasImage bool) (record.Record, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload == nil {
		return record.Record{}, fmt.Errorf("%w: %s", ErrAnalysisFailed, snippet(raw))
	}

	desc := description
	if desc == "" && hasImage {
		desc = photoDescription
	}

	name, _ := payload["meal_name"].(string)
	if name == "" {
		name = record.FallbackName(desc)
	}

	return record.Record{
		MealName:    name,
		Calories:    record.CoerceAmount(payload["calories"]),
		Protein:     record.CoerceAmount(payload["protein"]),
		Fat:         record.CoerceAmount(payload["fat"]),
		Carbs:       record.CoerceAmount(payload["carbs"]),
		Description: desc,
	}, nil
}

func snippet(s string) string {
	if s == "" {
		return "(empty response)"
	}
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
