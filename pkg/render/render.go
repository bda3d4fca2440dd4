package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wall_go/models"
)

type renderRequest struct {
	ID        int64    `json:"id"`
	Sender    string   `json:"sender,omitempty"`
	Anonymous bool     `json:"anonymous"`
	Text      string   `json:"text"`
	Media     []string `json:"media,omitempty"`
}

type renderResponse struct {
	ArtifactRef string `json:"artifact_ref"`
}

// Client: HTTP сервис, который строит картинку поста и возвращает ссылку на неё.
type Client struct {
	URL   string
	Token string
	HTTP  *http.Client
}

func New(url, token string, httpClient *http.Client) *Client {
	return &Client{URL: url, Token: token, HTTP: httpClient}
}

// Render отправляет заявку на рендер. Отправитель не передаётся для анонимных заявок.
func (c *Client) Render(ctx context.Context, s *models.Submission) (string, error) {
	in := renderRequest{ID: s.ID, Anonymous: s.IsAnonymous, Text: s.Text, Media: s.Media}
	if !s.IsAnonymous {
		in.Sender = s.Sender
	}
	body, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrRenderFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", models.ErrRenderFailure, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", models.ErrRenderFailure, err)
	}
	if out.ArtifactRef == "" {
		return "", fmt.Errorf("%w: empty artifact", models.ErrRenderFailure)
	}
	return out.ArtifactRef, nil
}
