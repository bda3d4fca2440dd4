package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wall_go/internal/platform"
	"wall_go/models"
)

type classifyRequest struct {
	Text  string   `json:"text"`
	Media []string `json:"media,omitempty"`
}

// Client обращается к HTTP шлюзу модели классификации.
// Любая ошибка транспорта или ответа оборачивает models.ErrClassificationUnavailable.
type Client struct {
	URL   string
	Token string
	HTTP  *http.Client
}

func New(url, token string, httpClient *http.Client) *Client {
	return &Client{URL: url, Token: token, HTTP: httpClient}
}

func (c *Client) Classify(ctx context.Context, text string, media []string) (*platform.Classification, error) {
	body, err := json.Marshal(classifyRequest{Text: text, Media: media})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrClassificationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrClassificationUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", models.ErrClassificationUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out platform.Classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode verdict: %v", models.ErrClassificationUnavailable, err)
	}
	return &out, nil
}
