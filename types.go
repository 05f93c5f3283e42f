package chefai

import (
	"context"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Card is a titled snippet attached to an outbound notification.
type Card struct {
	Title string
	Text  string
}

type Notifier interface {
	PostMessage(ctx context.Context, channel string, message string, cards ...Card) error
}
