// Package slack posts assistant replies to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chefai"
)

type Client struct {
	webhookURL string
	httpClient chefai.HTTPClient
}

var _ chefai.Notifier = (*Client)(nil)

func NewClient(webhookURL string, httpClient chefai.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

type attachment struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type payload struct {
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

// PostMessage sends message to channel. Each card becomes a webhook attachment.
func (c *Client) PostMessage(ctx context.Context, channel string, message string, cards ...chefai.Card) error {
	p := payload{Channel: channel, Text: message}
	for _, card := range cards {
		p.Attachments = append(p.Attachments, attachment{Title: card.Title, Text: card.Text})
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}
