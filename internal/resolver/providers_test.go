package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/teleload/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiklydownVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download", r.URL.Path)
		assert.Equal(t, "https://vm.tiktok.com/abc", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"video":{"noWatermark":"https://cdn/v.mp4","title":"hi #fyp"}}`))
	}))
	defer srv.Close()

	payload, err := NewTiklydown(srv.URL, srv.Client()).Fetch(context.Background(), "https://vm.tiktok.com/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", payload.VideoURL)
	assert.Equal(t, "hi #fyp", payload.Title)
	assert.Empty(t, payload.Photos)
}

func TestTiklydownImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"carousel","images":[{"url":"https://cdn/1.jpg"},{"url":"https://cdn/2.jpg"}]}`))
	}))
	defer srv.Close()

	payload, err := NewTiklydown(srv.URL, srv.Client()).Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "carousel", payload.Title)
	assert.Equal(t, []Photo{{URL: "https://cdn/1.jpg"}, {URL: "https://cdn/2.jpg"}}, payload.Photos)
}

func TestTikwmPrefixesRelativePlayPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"play":"/video/media/play/123.mp4","title":"clip"}}`))
	}))
	defer srv.Close()

	payload, err := NewTikwm(srv.URL, srv.Client()).Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/video/media/play/123.mp4", payload.VideoURL)
	assert.Equal(t, "clip", payload.Title)
}

func TestTikwmAbsolutePlayAndStringImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"play":"https://cdn/x.mp4","images":["https://cdn/a.jpg"]}}`))
	}))
	defer srv.Close()

	payload, err := NewTikwm(srv.URL, srv.Client()).Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.mp4", payload.VideoURL)
	assert.Equal(t, []Photo{{URL: "https://cdn/a.jpg"}}, payload.Photos)
}

func TestNon2xxIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewTikwm(srv.URL, srv.Client()).Fetch(context.Background(), "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamStatus))
}

func TestMalformedJSONIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewTiklydown(srv.URL, srv.Client()).Fetch(context.Background(), "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestBuildKeepsOrderAndReportsUnknown(t *testing.T) {
	providers, err := Build([]config.ProviderConfig{
		{Name: "tikwm", BaseURL: "http://a", Enabled: true},
		{Name: "nope", BaseURL: "http://b", Enabled: true},
		{Name: "TiklyDown", BaseURL: "http://c", Enabled: true},
	}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProvider))
	require.Len(t, providers, 2)
	assert.Equal(t, "tikwm", providers[0].Name())
	assert.Equal(t, "tiklydown", providers[1].Name())
}
