package resolver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

type tiklydownResponse struct {
	Title string `json:"title"`
	Video *struct {
		NoWatermark string `json:"noWatermark"`
		Title       string `json:"title"`
	} `json:"video"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

type tiklydownProvider struct {
	baseURL string
	client  *http.Client
}

func NewTiklydown(baseURL string, client *http.Client) Provider {
	if client == nil {
		client = http.DefaultClient
	}
	return &tiklydownProvider{baseURL: baseURL, client: client}
}

func (p *tiklydownProvider) Name() string {
	return "tiklydown"
}

func (p *tiklydownProvider) Fetch(ctx context.Context, sourceURL string) (Payload, error) {
	var body tiklydownResponse
	err := getJSON(ctx, p.client, joinURL(p.baseURL, "/api/download"), url.Values{"url": {sourceURL}}, &body)
	if err != nil {
		return Payload{}, err
	}

	var out Payload
	if body.Video != nil && strings.TrimSpace(body.Video.NoWatermark) != "" {
		out.VideoURL = strings.TrimSpace(body.Video.NoWatermark)
		out.Title = body.Video.Title
	}
	for _, img := range body.Images {
		if u := strings.TrimSpace(img.URL); u != "" {
			out.Photos = append(out.Photos, Photo{URL: u})
		}
	}
	if out.Title == "" {
		out.Title = body.Title
	}
	return out, nil
}
