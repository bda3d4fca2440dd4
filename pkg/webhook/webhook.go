package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"wall_go/internal/platform"
	"wall_go/models"
)

type postRequest struct {
	Number  int64    `json:"number,omitempty"`
	Mention string   `json:"mention,omitempty"`
	Text    string   `json:"text"`
	Links   []string `json:"links,omitempty"`
	Media   []string `json:"media,omitempty"`
	Body    string   `json:"body"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type postResponse struct {
	ID string `json:"id"`
}

// Publisher отправляет пост JSON-запросом на Account.Target.
// Заголовок Idempotency-Key позволяет приёмнику отбросить повтор одной и той же попытки.
type Publisher struct {
	HTTP *http.Client
}

func New(httpClient *http.Client) *Publisher {
	return &Publisher{HTTP: httpClient}
}

func (p *Publisher) Publish(ctx context.Context, acc models.Account, c platform.Content) (string, error) {
	return p.send(ctx, acc, postRequest{
		Number:  c.Number,
		Mention: c.Mention,
		Text:    c.Text,
		Links:   c.Links,
		Media:   c.Media,
		Body:    c.Body(),
	})
}

func (p *Publisher) Comment(ctx context.Context, acc models.Account, externalID, text string) error {
	_, err := p.send(ctx, acc, postRequest{Text: text, Body: text, ReplyTo: externalID})
	return err
}

func (p *Publisher) send(ctx context.Context, acc models.Account, payload postRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDeliveryTerminal, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, acc.Target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDeliveryTerminal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if acc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+acc.Token)
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDeliveryTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", models.ErrDeliveryTransient, resp.StatusCode)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", models.ErrDeliveryTerminal, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out postResponse
	// пустое тело допустимо: приёмник может не возвращать ID
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: decode response: %v", models.ErrDeliveryTransient, err)
	}
	return out.ID, nil
}
