package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHubURL       = "https://huggingface.co"
	defaultInferenceURL = "https://router.huggingface.co/hf-inference/models"
)

// HFClient runs a hub-hosted sequence-classification model through the hosted
// inference API. Tokenization happens server-side, so Encode only carries the
// text and the truncation length through to Forward.
type HFClient struct {
	HubURL       string
	InferenceURL string
	APIKey       string
	Repo         string
	Client       *http.Client

	// label name -> class index, from the repository's config.json
	label2id map[string]int
}

type hfConfig struct {
	ID2Label  map[string]string `json:"id2label"`
	NumLabels int               `json:"num_labels"`
}

type hfClassifyReq struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type hfScore struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

type hfErrorResp struct {
	Error string `json:"error"`
}

func NewHFClient(hubURL, inferenceURL, apiKey, repo string, timeout time.Duration) *HFClient {
	if hubURL == "" {
		hubURL = defaultHubURL
	}
	if inferenceURL == "" {
		inferenceURL = defaultInferenceURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HFClient{
		HubURL:       strings.TrimRight(hubURL, "/"),
		InferenceURL: strings.TrimRight(inferenceURL, "/"),
		APIKey:       strings.TrimSpace(apiKey),
		Repo:         repo,
		Client:       &http.Client{Timeout: timeout},
	}
}

// HFLoader returns a Loader backed by the hosted inference API.
func HFLoader(hubURL, inferenceURL, apiKey string, timeout time.Duration) Loader {
	return func(ctx context.Context, repo string) (*Artifacts, error) {
		return NewHFClient(hubURL, inferenceURL, apiKey, repo, timeout).Load(ctx)
	}
}

// Load fetches the repository's config.json to learn the label layout.
func (c *HFClient) Load(ctx context.Context) (*Artifacts, error) {
	if c.Client == nil {
		return nil, errors.New("hf: http client is nil")
	}
	url := fmt.Sprintf("%s/%s/resolve/main/config.json", c.HubURL, escapeRepo(c.Repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := hfStatusError(resp); err != nil {
		return nil, err
	}

	var cfg hfConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("hf: decode config: %w", err)
	}

	n := cfg.NumLabels
	if len(cfg.ID2Label) > n {
		n = len(cfg.ID2Label)
	}
	if n <= 0 {
		return nil, fmt.Errorf("hf: repo %s has no classification labels", c.Repo)
	}

	c.label2id = make(map[string]int, len(cfg.ID2Label))
	for k, name := range cfg.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("hf: bad id2label key %q", k)
		}
		c.label2id[name] = id
	}
	if len(c.label2id) == 0 {
		for i := 0; i < n; i++ {
			c.label2id[fmt.Sprintf("LABEL_%d", i)] = i
		}
	}

	return &Artifacts{Repo: c.Repo, NumLabels: n, Tokenizer: c, Model: c}, nil
}

func (c *HFClient) Encode(ctx context.Context, text string, maxLength int) (*Encoding, error) {
	_ = ctx
	return &Encoding{Text: text, MaxLength: maxLength}, nil
}

// Forward asks for every class score without softmax so the scores are the
// raw logits, then lays them out by class index.
func (c *HFClient) Forward(ctx context.Context, enc *Encoding) ([]float32, error) {
	if c.Client == nil {
		return nil, errors.New("hf: http client is nil")
	}
	if enc == nil {
		return nil, errors.New("hf: empty encoding")
	}
	n := len(c.label2id)
	if n == 0 {
		return nil, errors.New("hf: model not loaded")
	}

	params := map[string]any{
		"function_to_apply": "none",
		"top_k":             n,
		"truncation":        true,
	}
	if enc.MaxLength > 0 {
		params["max_length"] = enc.MaxLength
	}
	b, err := json.Marshal(hfClassifyReq{Inputs: enc.Text, Parameters: params})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", c.InferenceURL, escapeRepo(c.Repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := hfStatusError(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	scores, err := decodeHFScores(raw)
	if err != nil {
		return nil, err
	}

	logits := make([]float32, n)
	seen := 0
	for _, s := range scores {
		id, ok := c.classIndex(s.Label)
		if !ok || id < 0 || id >= n {
			return nil, fmt.Errorf("hf: unexpected label %q", s.Label)
		}
		logits[id] = s.Score
		seen++
	}
	if seen != n {
		return nil, fmt.Errorf("hf: got %d scores, want %d", seen, n)
	}
	return logits, nil
}

func (c *HFClient) classIndex(label string) (int, bool) {
	if id, ok := c.label2id[label]; ok {
		return id, true
	}
	if rest, ok := strings.CutPrefix(label, "LABEL_"); ok {
		id, err := strconv.Atoi(rest)
		return id, err == nil
	}
	return 0, false
}

func (c *HFClient) authorize(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

// decodeHFScores accepts both the flat and the batched ([[...]]) shapes.
func decodeHFScores(raw []byte) ([]hfScore, error) {
	var flat []hfScore
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var batched [][]hfScore
	if err := json.Unmarshal(raw, &batched); err == nil {
		if len(batched) == 0 {
			return nil, errors.New("hf: empty response")
		}
		return batched[0], nil
	}
	var e hfErrorResp
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return nil, fmt.Errorf("hf: %s", e.Error)
	}
	return nil, errors.New("hf: unrecognized response")
}

func hfStatusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("hf: %s", msg)
}
