package analyze

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// fakeGen scripts GenerateContent responses per attempt and records the
// last request for inspection.
type fakeGen struct {
	calls        int
	fn           func(call int) (*genai.GenerateContentResponse, error)
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (f *fakeGen) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastContents = contents
	f.lastConfig = config
	return f.fn(f.calls)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func newTestClient(t *testing.T, gen *fakeGen) *Client {
	t.Helper()
	c := newWithGenerator(gen, "test-model", zap.NewNop())
	// Keep the retry schedule in the microsecond range for tests.
	c.invoker.BaseDelay = time.Millisecond
	c.invoker.MaxJitter = time.Nanosecond
	return c
}

const goodPayload = `{"meal_name":"Beef noodle soup","calories":650.4,"protein":32,"fat":18.6,"carbs":70}`

// ============================================================
// Input validation
// ============================================================

func TestAnalyzeRequiresInput(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		t.Fatal("no request should be sent")
		return nil, nil
	}}
	c := newTestClient(t, gen)

	_, err := c.Analyze(context.Background(), "   ", nil, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalyzeRejectsOversizedImage(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		t.Fatal("no request should be sent")
		return nil, nil
	}}
	c := newTestClient(t, gen)

	big := make([]byte, MaxImageBytes+1)
	_, err := c.Analyze(context.Background(), "", big, "image/png")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no calls, got %d", gen.calls)
	}
}

// ============================================================
// Request shape
// ============================================================

func TestAnalyzeRequestShape(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	img := []byte{0xFF, 0xD8, 0xFF}
	if _, err := c.Analyze(context.Background(), "one bowl of noodles", img, "image/jpeg"); err != nil {
		t.Fatal(err)
	}

	if gen.lastModel != "test-model" {
		t.Fatalf("model = %q", gen.lastModel)
	}
	cfg := gen.lastConfig
	if cfg.ResponseMIMEType != "application/json" {
		t.Fatalf("response MIME = %q", cfg.ResponseMIMEType)
	}
	if cfg.ResponseSchema == nil || len(cfg.ResponseSchema.Required) != 5 {
		t.Fatalf("response schema missing required fields: %+v", cfg.ResponseSchema)
	}
	if cfg.SystemInstruction == nil {
		t.Fatal("system instruction missing")
	}

	if len(gen.lastContents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(gen.lastContents))
	}
	parts := gen.lastContents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected image part + text part, got %d parts", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/jpeg" {
		t.Fatalf("first part should be the inline image: %+v", parts[0])
	}
	if parts[1].Text == "" {
		t.Fatal("second part should carry the text query")
	}
}

func TestAnalyzeTextOnlyOmitsImagePart(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	if _, err := c.Analyze(context.Background(), "eggs on toast", nil, ""); err != nil {
		t.Fatal(err)
	}
	if len(gen.lastContents[0].Parts) != 1 {
		t.Fatalf("expected a single text part, got %d", len(gen.lastContents[0].Parts))
	}
}

// ============================================================
// Normalization of the response
// ============================================================

func TestAnalyzeNormalizesDraft(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	draft, err := c.Analyze(context.Background(), "one bowl of noodles", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if !draft.Draft() {
		t.Fatal("analysis result must be a draft")
	}
	if draft.MealName != "Beef noodle soup" {
		t.Fatalf("meal name = %q", draft.MealName)
	}
	if draft.Calories != 650 || draft.Protein != 32 || draft.Fat != 19 || draft.Carbs != 70 {
		t.Fatalf("nutrients not rounded as expected: %+v", draft)
	}
	if draft.Description != "one bowl of noodles" {
		t.Fatalf("description = %q", draft.Description)
	}
}

func TestAnalyzeDefaultsMissingFields(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"calories":"lots","protein":-5}`), nil
	}}
	c := newTestClient(t, gen)

	draft, err := c.Analyze(context.Background(), "mystery stew with dumplings", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if draft.Calories != 0 || draft.Protein != 0 || draft.Fat != 0 || draft.Carbs != 0 {
		t.Fatalf("missing/invalid nutrients must default to 0: %+v", draft)
	}
	if draft.MealName != "mystery stew wi..." {
		t.Fatalf("fallback meal name = %q", draft.MealName)
	}
}

func TestAnalyzePhotoOnlyDescription(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	draft, err := c.Analyze(context.Background(), "", []byte{1, 2, 3}, "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if draft.Description != photoDescription {
		t.Fatalf("photo-only description = %q", draft.Description)
	}
}

func TestAnalyzeUnparsableResponse(t *testing.T) {
	for _, raw := range []string{"", "I had a nice lunch", "[1,2,3]", "null"} {
		gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
			return textResponse(raw), nil
		}}
		c := newTestClient(t, gen)

		_, err := c.Analyze(context.Background(), "lunch", nil, "")
		if !errors.Is(err, ErrAnalysisFailed) {
			t.Fatalf("raw %q: expected ErrAnalysisFailed, got %v", raw, err)
		}
	}
}

// ============================================================
// Retry behavior
// ============================================================

func TestAnalyzeRetriesTransportErrors(t *testing.T) {
	gen := &fakeGen{fn: func(call int) (*genai.GenerateContentResponse, error) {
		if call < 5 {
			return nil, errors.New("connection reset")
		}
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	draft, err := c.Analyze(context.Background(), "lunch", nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if gen.calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", gen.calls)
	}
	if draft.Calories != 650 {
		t.Fatalf("calories = %d", draft.Calories)
	}
}

func TestAnalyzeTransportErrorPropagates(t *testing.T) {
	boom := errors.New("no route to host")
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return nil, boom
	}}
	c := newTestClient(t, gen)

	_, err := c.Analyze(context.Background(), "lunch", nil, "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, ErrServiceError) {
		t.Fatal("a transport failure must not look like a service reply")
	}
	if gen.calls != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", gen.calls)
	}
}

func TestAnalyzeServiceErrorSurfaces(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 503, Message: "model overloaded"}
	}}
	c := newTestClient(t, gen)

	_, err := c.Analyze(context.Background(), "lunch", nil, "")
	if !errors.Is(err, ErrServiceError) {
		t.Fatalf("expected ErrServiceError, got %v", err)
	}
	if gen.calls != 5 {
		t.Fatalf("service errors are retried before surfacing: %d attempts", gen.calls)
	}
}

func TestAnalyzeServiceErrorThenSuccess(t *testing.T) {
	gen := &fakeGen{fn: func(call int) (*genai.GenerateContentResponse, error) {
		if call == 1 {
			return nil, genai.APIError{Code: 429, Message: "rate limited"}
		}
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	if _, err := c.Analyze(context.Background(), "lunch", nil, ""); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", gen.calls)
	}
}

// ============================================================
// SetModel
// ============================================================

func TestSetModel(t *testing.T) {
	gen := &fakeGen{fn: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(goodPayload), nil
	}}
	c := newTestClient(t, gen)

	c.SetModel("gemini-2.5-pro")
	if _, err := c.Analyze(context.Background(), "lunch", nil, ""); err != nil {
		t.Fatal(err)
	}
	if gen.lastModel != "gemini-2.5-pro" {
		t.Fatalf("model = %q", gen.lastModel)
	}

	c.SetModel("")
	if c.model != "gemini-2.5-pro" {
		t.Fatal("empty model must be ignored")
	}
}
