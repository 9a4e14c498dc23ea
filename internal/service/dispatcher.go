package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"time"
)

// maxProviderBody caps how much of a provider response is buffered.
const maxProviderBody = 1 << 20

// Provider is a fallback backend able to resolve a download link.
type Provider struct {
	Name     string
	URL      string
	Priority int // lower is tried first
}

// SortProviders orders providers by priority, keeping configuration order for ties.
func SortProviders(ps []Provider) []Provider {
	out := make([]Provider, len(ps))
	copy(out, ps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Payload is the request forwarded to each provider.
type Payload struct {
	URL       string
	AudioOnly bool
}

type providerRequest struct {
	URL          string `json:"url"`
	DownloadMode string `json:"downloadMode"`
	IsAudioOnly  bool   `json:"isAudioOnly"`
}

// ProviderResponse is the first successful provider reply.
type ProviderResponse struct {
	Provider string
	Status   int
	Body     json.RawMessage
}

// DirectURL extracts a media link from provider payloads shaped like
// {"status": "redirect"|"tunnel"|"stream", "url": "..."}.
func (r *ProviderResponse) DirectURL() (string, bool) {
	var body struct {
		Status string `json:"status"`
		URL    string `json:"url"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return "", false
	}
	if body.URL == "" || body.Status == "error" {
		return "", false
	}
	return body.URL, true
}

// Observer receives per-provider outcomes. Failures are reported here and
// nowhere else.
type Observer interface {
	ProviderFailed(p Provider, attempt int, err *ProviderError, elapsed time.Duration)
	ProviderSucceeded(p Provider, attempt int, elapsed time.Duration)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver sets the diagnostic hook for provider outcomes.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithHTTPClient overrides the client used for provider calls.
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = c }
}

// Dispatcher tries providers in order until one succeeds. It keeps no memory
// between calls: every dispatch starts from the head of the list.
type Dispatcher struct {
	client   *http.Client
	timeout  time.Duration
	observer Observer
}

// NewDispatcher constructs a Dispatcher bounding each provider call by timeout.
func NewDispatcher(timeout time.Duration, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:  &http.Client{},
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch returns the first successful provider response. Individual provider
// failures are swallowed; ErrAllProvidersFailed is returned once the list is
// exhausted.
func (d *Dispatcher) Dispatch(ctx context.Context, providers []Provider, p Payload) (*ProviderResponse, error) {
	body, err := json.Marshal(providerRequest{
		URL:          p.URL,
		DownloadMode: downloadMode(p.AudioOnly),
		IsAudioOnly:  p.AudioOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	for i, prov := range providers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, err)
		}
		start := time.Now()
		resp, perr := d.call(ctx, prov, body)
		if perr != nil {
			// the caller went away; the provider is not at fault
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, err)
			}
			if d.observer != nil {
				d.observer.ProviderFailed(prov, i+1, perr, time.Since(start))
			}
			continue
		}
		if d.observer != nil {
			d.observer.ProviderSucceeded(prov, i+1, time.Since(start))
		}
		return resp, nil
	}
	return nil, ErrAllProvidersFailed
}

func (d *Dispatcher) call(ctx context.Context, prov Provider, body []byte) (*ProviderResponse, *ProviderError) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: prov.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: prov.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxProviderBody))
		return nil, &ProviderError{Provider: prov.Name, Status: resp.StatusCode}
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "application/json" {
		return nil, &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Err: errors.New("non-JSON response")}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Err: err}
	}
	if !json.Valid(raw) {
		return nil, &ProviderError{Provider: prov.Name, Status: resp.StatusCode, Err: errors.New("malformed JSON")}
	}
	return &ProviderResponse{Provider: prov.Name, Status: resp.StatusCode, Body: raw}, nil
}

func downloadMode(audioOnly bool) string {
	if audioOnly {
		return "audio"
	}
	return "auto"
}
