package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

type tikwmResponse struct {
	Data *struct {
		Play   string            `json:"play"`
		Title  string            `json:"title"`
		Images []json.RawMessage `json:"images"`
	} `json:"data"`
}

type tikwmProvider struct {
	baseURL string
	client  *http.Client
}

func NewTikwm(baseURL string, client *http.Client) Provider {
	if client == nil {
		client = http.DefaultClient
	}
	return &tikwmProvider{baseURL: baseURL, client: client}
}

func (p *tikwmProvider) Name() string {
	return "tikwm"
}

func (p *tikwmProvider) Fetch(ctx context.Context, sourceURL string) (Payload, error) {
	var body tikwmResponse
	err := getJSON(ctx, p.client, joinURL(p.baseURL, "/api/"), url.Values{"url": {sourceURL}}, &body)
	if err != nil {
		return Payload{}, err
	}
	if body.Data == nil {
		return Payload{}, nil
	}

	out := Payload{Title: body.Data.Title}
	if play := strings.TrimSpace(body.Data.Play); play != "" {
		if strings.HasPrefix(play, "http") {
			out.VideoURL = play
		} else {
			out.VideoURL = joinURL(p.baseURL, play)
		}
	}
	for _, raw := range body.Data.Images {
		if u := imageURL(raw); u != "" {
			out.Photos = append(out.Photos, Photo{URL: u})
		}
	}
	return out, nil
}

// imageURL accepts either a bare string or an object with a url field.
func imageURL(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.URL)
	}
	return ""
}
