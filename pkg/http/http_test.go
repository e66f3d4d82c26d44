package http_test

import (
	"context"
	"errors"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lhttp "github.com/shashiranjanraj/lister/pkg/http"
	"github.com/shashiranjanraj/lister/pkg/reqid"
)

func TestPostJSONAndHeaders(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get(reqid.Header))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ctx := reqid.WithValue(context.Background(), "req-1")
	resp, err := lhttp.Post(ctx, srv.URL).Bearer("tok").Body(map[string]string{"a": "b"}).Send()
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out struct{ OK bool }
	require.NoError(t, resp.JSON(&out))
	assert.True(t, out.OK)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(gohttp.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := lhttp.Get(context.Background(), srv.URL).Retry(3, time.Millisecond).Send()
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(gohttp.StatusBadRequest)
		_, _ = w.Write([]byte("bad"))
	}))
	defer srv.Close()

	resp, err := lhttp.Get(context.Background(), srv.URL).Retry(3, time.Millisecond).Send()
	require.NoError(t, err)

	var se *lhttp.StatusError
	require.True(t, errors.As(resp.Throw(), &se))
	assert.Equal(t, gohttp.StatusBadRequest, se.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := lhttp.Get(context.Background(), srv.URL).Timeout(20 * time.Millisecond).Send()
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
