package storybook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	minDimension = 32
	maxDimension = 1536
	maxNumImages = 8
)

// GenerationRequest describes one image generation job. It deliberately has
// no dataset or collection fields: only the model and optional element cross
// the wire.
type GenerationRequest struct {
	Prompt         string
	ModelID        string
	Width          int
	Height         int
	ElementID      int
	NegativePrompt string
	NumImages      int
}

// generationPayload is the exact JSON body of POST /generations.
type generationPayload struct {
	Height         int    `json:"height"`
	Width          int    `json:"width"`
	ModelID        string `json:"modelId"`
	Prompt         string `json:"prompt"`
	NumImages      int    `json:"num_images,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	UserLoraID     int    `json:"userLoraId,omitempty"`
}

type startResponse struct {
	SDGenerationJob *struct {
		GenerationID  string `json:"generationId"`
		APICreditCost int    `json:"apiCreditCost"`
	} `json:"sdGenerationJob"`
}

type generationBody struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Prompt          string `json:"prompt"`
	GeneratedImages []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"generated_images"`
}

// Generation is a snapshot of a remote job.
type Generation struct {
	ID        string
	Prompt    string
	Status    string
	State     JobState
	ImageURLs []string
}

// PlatformModel is one entry of the platform model listing.
type PlatformModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	// Transport replaces the HTTP transport of all three underlying clients.
	Transport http.RoundTripper
}

// Client talks to the Leonardo REST API. It keeps three HTTP clients: one for
// job submission and listings, one for status polls which retries a single
// time on transport errors, and one without credentials for image downloads.
type Client struct {
	apiKey  string
	baseURL string
	host    string
	api     *resty.Client
	poll    *resty.Client
	cdn     *resty.Client
}

// NewClient builds a Client. The API key is checked on every call rather than
// here, so a client can be built before the credential is configured.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 120 * time.Second
	}

	newResty := func(timeout time.Duration) *resty.Client {
		rc := resty.New().
			SetTimeout(timeout).
			SetLogger(restyLogger{}).
			SetHeader("Accept", "application/json")
		if opts.Transport != nil {
			rc.SetTransport(opts.Transport)
		}
		return rc
	}

	c := &Client{
		apiKey:  opts.APIKey,
		baseURL: base,
		host:    hostOf(base),
		api:     newResty(opts.RequestTimeout).SetBaseURL(base),
		poll:    newResty(opts.RequestTimeout).SetBaseURL(base),
		cdn:     newResty(opts.DownloadTimeout),
	}
	c.poll.SetRetryCount(1).
		SetRetryWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		})
	return c
}

// Host is the API host name used in connectivity errors.
func (c *Client) Host() string {
	return c.host
}

func (c *Client) request(ctx context.Context, rc *resty.Client) (*resty.Request, error) {
	key, err := CheckAPIKey(c.apiKey)
	if err != nil {
		return nil, err
	}
	return rc.R().SetContext(ctx).SetAuthToken(key), nil
}

// ValidateGenerationRequest checks a request without touching the network.
func ValidateGenerationRequest(req GenerationRequest) error {
	id := strings.TrimSpace(req.ModelID)
	switch {
	case id == "":
		return fmt.Errorf("%w: model ID is empty; set model_id in the catalog or pass --model-id", ErrValidation)
	case isPlaceholder(id):
		return fmt.Errorf("%w: model ID %q is a placeholder", ErrValidation, id)
	case strings.ContainsAny(id, " \t\r\n/?#"):
		return fmt.Errorf("%w: model ID %q is malformed", ErrValidation, id)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt is empty", ErrValidation)
	}
	for _, d := range []struct {
		name string
		v    int
	}{{"width", req.Width}, {"height", req.Height}} {
		if d.v < minDimension || d.v > maxDimension || d.v%8 != 0 {
			return fmt.Errorf("%w: %s %d must be a multiple of 8 between %d and %d", ErrValidation, d.name, d.v, minDimension, maxDimension)
		}
	}
	if req.NumImages < 0 || req.NumImages > maxNumImages {
		return fmt.Errorf("%w: num_images %d must be between 1 and %d", ErrValidation, req.NumImages, maxNumImages)
	}
	if req.ElementID < 0 {
		return fmt.Errorf("%w: element ID must not be negative", ErrValidation)
	}
	return nil
}

func buildPayload(req GenerationRequest) generationPayload {
	return generationPayload{
		Height:         req.Height,
		Width:          req.Width,
		ModelID:        strings.TrimSpace(req.ModelID),
		Prompt:         req.Prompt,
		NumImages:      req.NumImages,
		NegativePrompt: strings.TrimSpace(req.NegativePrompt),
		UserLoraID:     req.ElementID,
	}
}

// StartGeneration submits a job and returns its generation ID. The credential
// and the request are validated before any network I/O.
func (c *Client) StartGeneration(ctx context.Context, req GenerationRequest) (string, error) {
	r, err := c.request(ctx, c.api)
	if err != nil {
		return "", err
	}
	if err := ValidateGenerationRequest(req); err != nil {
		return "", err
	}

	resp, err := r.SetBody(buildPayload(req)).Post("/generations")
	if err != nil {
		return "", c.transportError(c.host, err)
	}
	body, err := checkResponse(resp)
	if err != nil {
		return "", err
	}

	var out startResponse
	if err := json.Unmarshal(body, &out); err != nil || out.SDGenerationJob == nil || out.SDGenerationJob.GenerationID == "" {
		return "", &RemoteError{
			StatusCode: resp.StatusCode(),
			Body:       string(body),
			Hint:       "response has no sdGenerationJob.generationId",
		}
	}
	return out.SDGenerationJob.GenerationID, nil
}

// PollGeneration fetches the current state of a job once. Looping is the
// caller's job; see Poller.
func (c *Client) PollGeneration(ctx context.Context, id string) (*Generation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: generation ID is empty", ErrValidation)
	}
	r, err := c.request(ctx, c.poll)
	if err != nil {
		return nil, err
	}
	resp, err := r.SetPathParam("id", id).Get("/generations/{id}")
	if err != nil {
		return nil, c.transportError(c.host, err)
	}
	body, err := checkResponse(resp)
	if err != nil {
		return nil, err
	}
	return parseGeneration(id, resp.StatusCode(), body)
}

// parseGeneration reads a status body. A record that is missing or has no
// status yet counts as pending; Leonardo returns that right after submission.
func parseGeneration(id string, status int, body []byte) (*Generation, error) {
	var wrapped struct {
		ByPK *generationBody `json:"generations_by_pk"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, &RemoteError{StatusCode: status, Body: string(body), Hint: "response is not valid JSON"}
	}
	gen := wrapped.ByPK
	if gen == nil {
		var flat generationBody
		if err := json.Unmarshal(body, &flat); err != nil {
			return nil, &RemoteError{StatusCode: status, Body: string(body), Hint: "response is not a generation"}
		}
		gen = &flat
	}
	if strings.TrimSpace(gen.Status) == "" {
		return &Generation{ID: id, State: JobPending}, nil
	}
	if gen.ID == "" {
		gen.ID = id
	}

	out := &Generation{
		ID:     gen.ID,
		Prompt: gen.Prompt,
		Status: gen.Status,
		State:  ParseJobState(gen.Status),
	}
	for _, img := range gen.GeneratedImages {
		if img.URL != "" {
			out.ImageURLs = append(out.ImageURLs, img.URL)
		}
	}
	return out, nil
}

// ListPlatformModels returns up to limit public models.
func (c *Client) ListPlatformModels(ctx context.Context, limit int) ([]PlatformModel, error) {
	if limit <= 0 {
		limit = 15
	}
	r, err := c.request(ctx, c.api)
	if err != nil {
		return nil, err
	}
	resp, err := r.SetQueryParams(map[string]string{
		"page":    "1",
		"perPage": strconv.Itoa(limit),
	}).Get("/platformModels")
	if err != nil {
		return nil, c.transportError(c.host, err)
	}
	body, err := checkResponse(resp)
	if err != nil {
		return nil, err
	}

	raw, err := modelList(body)
	if err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: string(body), Hint: "unexpected platformModels response"}
	}
	models := make([]PlatformModel, 0, len(raw))
	for _, m := range raw {
		models = append(models, PlatformModel{
			ID:          firstString(m, "id", "uuid", "modelId"),
			Name:        firstString(m, "name", "title", "label"),
			Description: firstString(m, "description"),
		})
		if len(models) == limit {
			break
		}
	}
	return models, nil
}

func modelList(body []byte) ([]map[string]any, error) {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	for _, key := range []string{"data", "custom_models", "models"} {
		if v, ok := obj[key]; ok {
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, err
			}
			return list, nil
		}
	}
	return nil, errors.New("no model list in response")
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// DownloadImage fetches a finished image. No credentials are sent.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid image URL %q", ErrValidation, imageURL)
	}
	resp, err := c.cdn.R().SetContext(ctx).SetHeader("Accept", "image/*").Get(imageURL)
	if err != nil {
		return nil, c.transportError(u.Hostname(), err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: resp.String(), Hint: "image download failed"}
	}
	if len(resp.Body()) == 0 {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Hint: "image download returned an empty body"}
	}
	return resp.Body(), nil
}

func checkResponse(resp *resty.Response) ([]byte, error) {
	body := resp.Body()
	html := strings.Contains(strings.ToLower(resp.Header().Get("Content-Type")), "text/html")
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 || html {
		return nil, &RemoteError{
			StatusCode: resp.StatusCode(),
			Body:       string(body),
			Hint:       hintFor(resp.StatusCode(), html),
		}
	}
	return body, nil
}

func hintFor(status int, html bool) string {
	switch {
	case html:
		return "received an HTML page instead of JSON; the request was probably blocked by Cloudflare or LEONARDO_BASE_URL is wrong"
	case status == http.StatusUnauthorized:
		return "check LEONARDO_API_KEY; the key may be missing or invalid"
	case status == http.StatusBadRequest:
		return "verify modelId, width/height limits, and that the prompt is not empty"
	case status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return "the model ID may not exist; run `storybook models` to list available models"
	case status == http.StatusTooManyRequests:
		return "rate limited by Leonardo; wait a moment and try again"
	}
	return ""
}

func (c *Client) transportError(host string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: request to %s timed out: %v", ErrTimeout, host, err)
	}
	return &ConnectivityError{Host: host, Err: err}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Hostname()
}

type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Printf("leonardo: ERROR "+format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Printf("leonardo: WARN "+format, v...)
}

func (restyLogger) Debugf(string, ...interface{}) {}
