package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// EndpointClient talks to a self-hosted inference server that exposes the
// tokenizer and the classification model of a repository:
//
//	GET  /models/{repo}           -> {"num_labels", "max_length"}
//	POST /models/{repo}/tokenize  -> {"input_ids", "attention_mask"}
//	POST /models/{repo}/forward   -> {"logits"}
type EndpointClient struct {
	BaseURL string
	APIKey  string
	Repo    string
	Client  *http.Client
}

type endpointInfoResp struct {
	NumLabels int    `json:"num_labels"`
	MaxLength int    `json:"max_length"`
	Error     string `json:"error,omitempty"`
}

type endpointTokenizeReq struct {
	Text       string `json:"text"`
	MaxLength  int    `json:"max_length"`
	Padding    bool   `json:"padding"`
	Truncation bool   `json:"truncation"`
}

type endpointTokenizeResp struct {
	InputIDs      []int  `json:"input_ids"`
	AttentionMask []int  `json:"attention_mask"`
	Error         string `json:"error,omitempty"`
}

type endpointForwardReq struct {
	InputIDs      []int `json:"input_ids"`
	AttentionMask []int `json:"attention_mask"`
}

type endpointForwardResp struct {
	Logits []float32 `json:"logits"`
	Error  string    `json:"error,omitempty"`
}

func NewEndpointClient(baseURL, apiKey, repo string, timeout time.Duration) *EndpointClient {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EndpointClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  strings.TrimSpace(apiKey),
		Repo:    repo,
		Client:  &http.Client{Timeout: timeout},
	}
}

// EndpointLoader returns a Loader that probes the server for repo.
func EndpointLoader(baseURL, apiKey string, timeout time.Duration) Loader {
	return func(ctx context.Context, repo string) (*Artifacts, error) {
		c := NewEndpointClient(baseURL, apiKey, repo, timeout)
		return c.Load(ctx)
	}
}

// Load checks that the repository is served and reports its label count.
func (c *EndpointClient) Load(ctx context.Context) (*Artifacts, error) {
	var info endpointInfoResp
	if err := c.do(ctx, http.MethodGet, c.modelURL(""), nil, &info); err != nil {
		return nil, err
	}
	if info.Error != "" {
		return nil, errors.New(info.Error)
	}
	if info.NumLabels <= 0 {
		return nil, fmt.Errorf("endpoint: repo %s reports %d labels", c.Repo, info.NumLabels)
	}
	return &Artifacts{
		Repo:      c.Repo,
		NumLabels: info.NumLabels,
		Tokenizer: c,
		Model:     c,
	}, nil
}

func (c *EndpointClient) Encode(ctx context.Context, text string, maxLength int) (*Encoding, error) {
	req := endpointTokenizeReq{
		Text:       text,
		MaxLength:  maxLength,
		Padding:    true,
		Truncation: true,
	}
	var decoded endpointTokenizeResp
	if err := c.do(ctx, http.MethodPost, c.modelURL("tokenize"), req, &decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	if len(decoded.InputIDs) == 0 {
		return nil, errors.New("endpoint: tokenizer returned no ids")
	}
	if len(decoded.AttentionMask) != len(decoded.InputIDs) {
		return nil, fmt.Errorf("endpoint: attention mask length %d != ids length %d", len(decoded.AttentionMask), len(decoded.InputIDs))
	}
	if maxLength > 0 && len(decoded.InputIDs) > maxLength {
		return nil, fmt.Errorf("endpoint: tokenizer returned %d ids, max %d", len(decoded.InputIDs), maxLength)
	}
	return &Encoding{
		Text:          text,
		InputIDs:      decoded.InputIDs,
		AttentionMask: decoded.AttentionMask,
		MaxLength:     maxLength,
	}, nil
}

func (c *EndpointClient) Forward(ctx context.Context, enc *Encoding) ([]float32, error) {
	if enc == nil || len(enc.InputIDs) == 0 {
		return nil, errors.New("endpoint: empty encoding")
	}
	req := endpointForwardReq{InputIDs: enc.InputIDs, AttentionMask: enc.AttentionMask}
	var decoded endpointForwardResp
	if err := c.do(ctx, http.MethodPost, c.modelURL("forward"), req, &decoded); err != nil {
		return nil, err
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}
	return decoded.Logits, nil
}

func (c *EndpointClient) modelURL(op string) string {
	u := fmt.Sprintf("%s/models/%s", c.BaseURL, escapeRepo(c.Repo))
	if op != "" {
		u += "/" + op
	}
	return u
}

func (c *EndpointClient) do(ctx context.Context, method, target string, body any, out any) error {
	if c.Client == nil {
		return errors.New("endpoint: http client is nil")
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("endpoint: %s", msg)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// escapeRepo keeps the owner/name separator of a hub repository id.
func escapeRepo(repo string) string {
	parts := strings.Split(repo, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
