package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu        sync.Mutex
	failed    []string
	succeeded []string
	errs      []*ProviderError
}

func (o *recordingObserver) ProviderFailed(p Provider, attempt int, err *ProviderError, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, p.Name)
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) ProviderSucceeded(p Provider, attempt int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeeded = append(o.succeeded, p.Name)
}

func jsonServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatchFallsThroughToFirstSuccess(t *testing.T) {
	var hitsA, hitsB, hitsC, hitsD int32
	a := jsonServer(t, http.StatusInternalServerError, `{"status":"error"}`, &hitsA)
	b := jsonServer(t, http.StatusBadGateway, `{}`, &hitsB)
	c := jsonServer(t, http.StatusOK, `{"status":"redirect","url":"https://cdn.example/v.mp4"}`, &hitsC)
	d := jsonServer(t, http.StatusOK, `{"status":"redirect","url":"https://other.example/v.mp4"}`, &hitsD)

	obs := &recordingObserver{}
	disp := NewDispatcher(2*time.Second, WithObserver(obs))
	providers := []Provider{
		{Name: "A", URL: a.URL},
		{Name: "B", URL: b.URL},
		{Name: "C", URL: c.URL},
		{Name: "D", URL: d.URL},
	}

	resp, err := disp.Dispatch(context.Background(), providers, Payload{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "C", resp.Provider)
	assert.Equal(t, http.StatusOK, resp.Status)

	link, ok := resp.DirectURL()
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/v.mp4", link)

	assert.EqualValues(t, 1, hitsA)
	assert.EqualValues(t, 1, hitsB)
	assert.EqualValues(t, 1, hitsC)
	assert.EqualValues(t, 0, hitsD, "providers after the first success must not be tried")

	assert.Equal(t, []string{"A", "B"}, obs.failed)
	assert.Equal(t, []string{"C"}, obs.succeeded)
	assert.Equal(t, http.StatusInternalServerError, obs.errs[0].Status)
}

func TestDispatchAllProvidersFailed(t *testing.T) {
	bad := jsonServer(t, http.StatusServiceUnavailable, `{}`, nil)

	disp := NewDispatcher(time.Second)
	_, err := disp.Dispatch(context.Background(), []Provider{
		{Name: "bad-url", URL: "http://127.0.0.1:1/unreachable"},
		{Name: "down", URL: bad.URL},
	}, Payload{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestDispatchNetworkErrorOnly(t *testing.T) {
	obs := &recordingObserver{}
	disp := NewDispatcher(time.Second, WithObserver(obs))
	_, err := disp.Dispatch(context.Background(), []Provider{{Name: "bad-url", URL: "http://127.0.0.1:1"}}, Payload{URL: "x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	require.Len(t, obs.errs, 1)
	assert.Error(t, obs.errs[0].Err)
}

func TestDispatchEmptyProviderList(t *testing.T) {
	disp := NewDispatcher(time.Second)
	_, err := disp.Dispatch(context.Background(), nil, Payload{URL: "x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestDispatchTimeoutMovesToNextProvider(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)
	fast := jsonServer(t, http.StatusOK, `{"status":"tunnel","url":"https://fast.example/a"}`, nil)

	obs := &recordingObserver{}
	disp := NewDispatcher(50*time.Millisecond, WithObserver(obs))
	resp, err := disp.Dispatch(context.Background(), []Provider{
		{Name: "slow", URL: slow.URL},
		{Name: "fast", URL: fast.URL},
	}, Payload{URL: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Provider)
	assert.Equal(t, []string{"slow"}, obs.failed)
}

func TestDispatchRejectsNonJSON(t *testing.T) {
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>blocked</html>"))
	}))
	defer html.Close()

	disp := NewDispatcher(time.Second)
	_, err := disp.Dispatch(context.Background(), []Provider{{Name: "html", URL: html.URL}}, Payload{URL: "x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestDispatchSendsPayload(t *testing.T) {
	var got providerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"status":"stream","url":"u"}`))
	}))
	defer srv.Close()

	disp := NewDispatcher(time.Second)
	_, err := disp.Dispatch(context.Background(), []Provider{{Name: "p", URL: srv.URL}}, Payload{URL: "https://youtu.be/abc", AudioOnly: true})
	require.NoError(t, err)
	assert.Equal(t, providerRequest{URL: "https://youtu.be/abc", DownloadMode: "audio", IsAudioOnly: true}, got)
}

func TestDispatchCancelledContext(t *testing.T) {
	ok := jsonServer(t, http.StatusOK, `{}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	disp := NewDispatcher(time.Second)
	_, err := disp.Dispatch(ctx, []Provider{{Name: "p", URL: ok.URL}}, Payload{URL: "x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestDispatchCancelledMidCallNotBlamedOnProvider(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)
	var nextHits int32
	next := jsonServer(t, http.StatusOK, `{"status":"tunnel","url":"https://next.example/a"}`, &nextHits)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	obs := &recordingObserver{}
	disp := NewDispatcher(5*time.Second, WithObserver(obs))
	_, err := disp.Dispatch(ctx, []Provider{
		{Name: "slow", URL: slow.URL},
		{Name: "next", URL: next.URL},
	}, Payload{URL: "x"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorContains(t, err, context.Canceled.Error())
	assert.Empty(t, obs.failed)
	assert.Empty(t, obs.succeeded)
	assert.EqualValues(t, 0, atomic.LoadInt32(&nextHits))
}

func TestSortProviders(t *testing.T) {
	in := []Provider{
		{Name: "c", Priority: 2},
		{Name: "a", Priority: 1},
		{Name: "b", Priority: 1},
	}
	out := SortProviders(in)
	names := []string{out[0].Name, out[1].Name, out[2].Name}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.Equal(t, "c", in[0].Name, "input must not be reordered")
}

func TestDirectURL(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{`{"status":"redirect","url":"https://x/y"}`, "https://x/y", true},
		{`{"status":"error","url":"https://x/y"}`, "", false},
		{`{"status":"picker"}`, "", false},
		{`[1,2]`, "", false},
	}
	for _, tt := range tests {
		r := &ProviderResponse{Body: json.RawMessage(tt.body)}
		got, ok := r.DirectURL()
		assert.Equal(t, tt.ok, ok, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
}
