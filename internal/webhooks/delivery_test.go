package webhooks

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenanthooks/internal/model"
)

// hangingServer never answers until the client gives up or the test ends.
func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func statusServer(t *testing.T, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeliverSuccessHeadersAndBody(t *testing.T) {
	var gotCT, gotUA, gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		gotUA = r.Header.Get("User-Agent")
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	exec := NewExecutor(ExecutorConfig{UserAgent: "tenanthooks-dispatcher/test"})
	body := []byte(`{"eventType":"partner.created"}`)
	res := exec.Deliver(t.Context(), model.Webhook{ID: "h1", URL: srv.URL}, body)

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Empty(t, res.Error)
	assert.Equal(t, "h1", res.SubscriptionID)
	assert.Equal(t, srv.URL, res.URL)
	assert.False(t, res.Timestamp.IsZero())
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "tenanthooks-dispatcher/test", gotUA)
	assert.Equal(t, body, gotBody)
}

func TestDeliverDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	res := NewExecutor(ExecutorConfig{}).Deliver(t.Context(), model.Webhook{ID: "h1", URL: srv.URL}, []byte(`{}`))
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Regexp(t, `^tenanthooks-dispatcher/`, gotUA)
}

func TestDeliverRejectedKeepsStatus(t *testing.T) {
	srv := statusServer(t, http.StatusInternalServerError, nil)
	res := NewExecutor(ExecutorConfig{}).Deliver(t.Context(), model.Webhook{ID: "h1", URL: srv.URL}, []byte(`{}`))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Contains(t, res.Error, "500")
}

func TestDeliverTimeout(t *testing.T) {
	srv := hangingServer(t)
	exec := NewExecutor(ExecutorConfig{Timeout: 100 * time.Millisecond})

	res := exec.Deliver(t.Context(), model.Webhook{ID: "h1", URL: srv.URL}, []byte(`{}`))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Zero(t, res.StatusCode)
	assert.Contains(t, res.Error, "timed out")
	assert.Less(t, res.Latency, 3*time.Second)
}

func TestDeliverConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewExecutor(ExecutorConfig{Timeout: time.Second}).Deliver(t.Context(), model.Webhook{ID: "h1", URL: url}, []byte(`{}`))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Zero(t, res.StatusCode)
	assert.NotEmpty(t, res.Error)
}

func TestDeliverLocalErrorOnBadURL(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{})
	for _, u := range []string{"ftp://example.com/hook", "://missing-scheme", ""} {
		res := exec.Deliver(t.Context(), model.Webhook{ID: "h1", URL: u}, []byte(`{}`))
		assert.Equal(t, OutcomeFailed, res.Outcome, u)
		assert.Contains(t, res.Error, "request not sent", u)
	}
}

func TestPostClassifiesAttempts(t *testing.T) {
	ok := statusServer(t, http.StatusNoContent, nil)
	bad := statusServer(t, http.StatusNotFound, nil)
	slow := hangingServer(t)
	exec := NewExecutor(ExecutorConfig{Timeout: 100 * time.Millisecond})

	assert.Equal(t, AttemptOK{Status: http.StatusNoContent}, exec.post(t.Context(), ok.URL, nil))
	assert.Equal(t, AttemptRejected{Status: http.StatusNotFound}, exec.post(t.Context(), bad.URL, nil))
	assert.Equal(t, AttemptTimeout{}, exec.post(t.Context(), slow.URL, nil))
	assert.IsType(t, AttemptLocalError{}, exec.post(t.Context(), "mailto:a@b.c", nil))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusBadGateway, &hits)
	exec := NewExecutor(ExecutorConfig{Breaker: &BreakerConfig{Failures: 2, Cooldown: time.Minute}})
	hook := model.Webhook{ID: "h1", URL: srv.URL}

	for range 2 {
		res := exec.Deliver(t.Context(), hook, []byte(`{}`))
		require.Equal(t, http.StatusBadGateway, res.StatusCode)
	}
	res := exec.Deliver(t.Context(), hook, []byte(`{}`))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Error, "circuit open")
	assert.Equal(t, int32(2), hits.Load(), "open breaker sends nothing")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusBadRequest, &hits)
	exec := NewExecutor(ExecutorConfig{Breaker: &BreakerConfig{Failures: 1, Cooldown: time.Minute}})
	hook := model.Webhook{ID: "h1", URL: srv.URL}

	for range 3 {
		res := exec.Deliver(t.Context(), hook, []byte(`{}`))
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestBreakerDisabledByDefault(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{})
	assert.Nil(t, exec.breakers)
	exec = NewExecutor(ExecutorConfig{Breaker: &BreakerConfig{Failures: 0}})
	assert.Nil(t, exec.breakers)
}

func TestDeliverDoesNotFollowRedirects(t *testing.T) {
	var finalHits atomic.Int32
	final := statusServer(t, http.StatusOK, &finalHits)
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirect.Close()

	exec := NewExecutor(ExecutorConfig{Client: &http.Client{}})
	res := exec.Deliver(t.Context(), model.Webhook{ID: "h1", URL: redirect.URL}, []byte(`{"a":1}`))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "remote rejected: HTTP 302", res.Error)
	assert.Zero(t, finalHits.Load(), "redirect target is never contacted")
}

func TestBreakerMapIsBounded(t *testing.T) {
	failing := statusServer(t, http.StatusBadGateway, nil)
	exec := NewExecutor(ExecutorConfig{Breaker: &BreakerConfig{Failures: 1, Cooldown: time.Minute}})
	exec.breakerCap = 2

	exec.Deliver(t.Context(), model.Webhook{ID: "bad", URL: failing.URL}, []byte(`{}`))
	for range 3 {
		ok := statusServer(t, http.StatusOK, nil)
		res := exec.Deliver(t.Context(), model.Webhook{ID: "ok", URL: ok.URL}, []byte(`{}`))
		require.Equal(t, OutcomeSuccess, res.Outcome)
		assert.LessOrEqual(t, len(exec.breakers), 2)
	}

	res := exec.Deliver(t.Context(), model.Webhook{ID: "bad", URL: failing.URL}, []byte(`{}`))
	assert.Contains(t, res.Error, "circuit open", "open breakers survive eviction")
}
