package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"shopping-assistant/internal/domain"
)

const (
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultExtractionModel = "gpt-4o"
	listPageSize           = 100
)

// assistantsAPI is the subset of the go-openai client used by Client.
// *goopenai.Client satisfies it.
type assistantsAPI interface {
	CreateThread(ctx context.Context, request goopenai.ThreadRequest) (goopenai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request goopenai.MessageRequest) (goopenai.Message, error)
	CreateRun(ctx context.Context, threadID string, request goopenai.RunRequest) (goopenai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (goopenai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (goopenai.MessagesList, error)
	CreateChatCompletion(ctx context.Context, request goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Op         string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.Op, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client drives OpenAI Assistants threads and structured chat completions.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	getter          Getter
	paramPrefix     string
	apiKey          string
	extractionModel string

	initOnce sync.Once
	api      assistantsAPI
	initErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets the key directly instead of reading it from the param store.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func WithParamStore(ps Getter, paramPrefix string) Option {
	return func(c *Client) {
		c.getter = ps
		c.paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	}
}

func WithExtractionModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.extractionModel = model
		}
	}
}

// NewClient creates a Client. Without WithAPIKey the key is fetched from the
// param store on first use and reused for the lifetime of the process.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:         defaultBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		extractionModel: defaultExtractionModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		if c.getter == nil {
			return nil, errors.New("openai: api key or paramstore getter required")
		}
		if c.paramPrefix == "" {
			return nil, errors.New("openai: parameter prefix must not be empty")
		}
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// assistants builds the go-openai client once the key is known.
func (c *Client) assistants(ctx context.Context) (assistantsAPI, error) {
	c.initOnce.Do(func() {
		key := c.apiKey
		if key == "" {
			key, c.initErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
			if c.initErr != nil {
				return
			}
		}
		cfg := goopenai.DefaultConfig(key)
		cfg.BaseURL = c.baseURL
		if c.httpClient != nil {
			cfg.HTTPClient = c.httpClient
		}
		c.api = goopenai.NewClientWithConfig(cfg)
	})
	return c.api, c.initErr
}

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	api, err := c.assistants(ctx)
	if err != nil {
		return "", err
	}
	thread, err := api.CreateThread(ctx, goopenai.ThreadRequest{})
	if err != nil {
		return "", translateError("create thread", err)
	}
	return thread.ID, nil
}

func (c *Client) AppendTurn(ctx context.Context, threadID string, role domain.Role, content string) (domain.Turn, error) {
	api, err := c.assistants(ctx)
	if err != nil {
		return domain.Turn{}, err
	}
	msg, err := api.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    string(role),
		Content: content,
	})
	if err != nil {
		return domain.Turn{}, translateError("create message", err)
	}
	return toTurn(msg), nil
}

func (c *Client) StartRun(ctx context.Context, threadID, assistantID string) (domain.Run, error) {
	api, err := c.assistants(ctx)
	if err != nil {
		return domain.Run{}, err
	}
	run, err := api.CreateRun(ctx, threadID, goopenai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return domain.Run{}, translateError("create run", err)
	}
	return toRun(run, threadID), nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (domain.Run, error) {
	api, err := c.assistants(ctx)
	if err != nil {
		return domain.Run{}, err
	}
	run, err := api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return domain.Run{}, translateError("retrieve run", err)
	}
	return toRun(run, threadID), nil
}

// ListTurns pages through the whole thread, newest first.
func (c *Client) ListTurns(ctx context.Context, threadID string) ([]domain.Turn, error) {
	api, err := c.assistants(ctx)
	if err != nil {
		return nil, err
	}

	limit := listPageSize
	order := "desc"
	var after *string
	turns := make([]domain.Turn, 0)
	for {
		page, err := api.ListMessage(ctx, threadID, &limit, &order, after, nil, nil)
		if err != nil {
			return nil, translateError("list messages", err)
		}
		for _, m := range page.Messages {
			turns = append(turns, toTurn(m))
		}
		if !page.HasMore || page.LastID == nil || *page.LastID == "" {
			return turns, nil
		}
		after = page.LastID
	}
}

// StructuredExtract requests a completion constrained to the JSON schema of
// out and decodes it into out.
func (c *Client) StructuredExtract(ctx context.Context, messages []domain.ChatMessage, schemaName string, out any) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return errors.New("openai: structured output target must be a non-nil pointer")
	}
	schema, err := jsonschema.GenerateSchemaForType(target.Elem().Interface())
	if err != nil {
		return fmt.Errorf("openai: generate schema %s: %w", schemaName, err)
	}
	api, err := c.assistants(ctx)
	if err != nil {
		return err
	}

	chat := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	resp, err := api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    c.extractionModel,
		Messages: chat,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Strict: true,
				Schema: schema,
			},
		},
	})
	if err != nil {
		return translateError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices in response", domain.ErrMalformedOutput)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return fmt.Errorf("%w: refused: %s", domain.ErrMalformedOutput, msg.Refusal)
	}
	if err := schema.Unmarshal(msg.Content, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return nil
}

func toTurn(m goopenai.Message) domain.Turn {
	fragments := make([]domain.Fragment, 0, len(m.Content))
	for _, part := range m.Content {
		f := domain.Fragment{Type: part.Type}
		if part.Text != nil {
			f.Text = part.Text.Value
		}
		fragments = append(fragments, f)
	}
	return domain.Turn{
		ID:        m.ID,
		Role:      domain.Role(m.Role),
		CreatedAt: int64(m.CreatedAt),
		Fragments: fragments,
	}
}

func toRun(r goopenai.Run, threadID string) domain.Run {
	if r.ThreadID != "" {
		threadID = r.ThreadID
	}
	return domain.Run{ID: r.ID, ThreadID: threadID, Status: domain.RunStatus(r.Status)}
}

// translateError lifts go-openai status errors into HTTPStatusError so callers
// can classify them without importing go-openai.
func translateError(op string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Op: op, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Op: op, Body: reqErr.Error()}
	}
	return fmt.Errorf("openai: %s: %w", op, err)
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
