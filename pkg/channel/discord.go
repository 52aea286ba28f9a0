package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/common"
	"github.com/solarbot/solarbot/pkg/log"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 1 << 20

// Discord implements Channel on top of a Discord webhook.
type Discord struct {
	client  *http.Client
	baseURL string
}

// Configured sets up the Discord webhook from flags. The webhook defaults to
// DISCORD_WEBHOOK_URL so an existing .env keeps working.
func Configured() *Discord {
	webhook := lflag.String("discord-webhook-url", os.Getenv("DISCORD_WEBHOOK_URL"), "Discord webhook URL to post to")

	d := &Discord{
		client: common.HTTPClient(30 * time.Second),
	}

	lflag.Do(func() {
		if *webhook == "" {
			panic("discord-webhook-url is required")
		}
		u, err := url.Parse(*webhook)
		if err != nil || u.Scheme == "" || u.Host == "" {
			panic(fmt.Sprintf("invalid discord-webhook-url: %v", err))
		}
		d.baseURL = webhookBase(*webhook)
	})

	return d
}

// NewDiscord returns a Discord channel posting to webhook with client.
func NewDiscord(client *http.Client, webhook string) *Discord {
	return &Discord{
		client:  client,
		baseURL: webhookBase(webhook),
	}
}

// webhookBase strips a trailing /messages/... and any query from a webhook
// URL so message paths can be appended to it.
func webhookBase(webhook string) string {
	base, _, _ := strings.Cut(webhook, "?")
	base, _, _ = strings.Cut(base, "/messages")
	return strings.TrimRight(base, "/")
}

type messageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Ref returns the webhook id, leaving out its token.
func (d *Discord) Ref() string {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "discord"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "webhooks" && i+1 < len(parts) {
			return "discord:webhook/" + parts[i+1]
		}
	}
	return "discord:" + u.Host
}

// Create posts a new message and waits for Discord to return it so its id
// can be stored.
func (d *Discord) Create(ctx context.Context, content string) (string, error) {
	req, err := d.newJSONRequest(ctx, http.MethodPost, url.Values{"wait": {"true"}}, content)
	if err != nil {
		return "", err
	}

	body, err := d.do(req, "create message")
	if err != nil {
		return "", err
	}

	var res messageResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", &FormatError{Body: string(body), Err: err}
	}
	if res.ID == "" {
		return "", &FormatError{Body: string(body), Err: errors.New("missing id")}
	}
	log.Ctx(ctx).DebugContext(ctx, "discord message created", slog.String("id", res.ID))
	return res.ID, nil
}

// Edit replaces the content of the message with the given id.
func (d *Discord) Edit(ctx context.Context, id, content string) error {
	if id == "" {
		return errors.New("missing message id")
	}
	req, err := d.newJSONRequest(ctx, http.MethodPatch, nil, content, "messages", id)
	if err != nil {
		return err
	}
	_, err = d.do(req, "edit message")
	return err
}

// Get returns the content of the message with the given id.
func (d *Discord) Get(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("missing message id")
	}
	u, err := d.endpoint(nil, "messages", id)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	body, err := d.do(req, "get message")
	if err != nil {
		return "", err
	}
	var res messageResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to decode message: %w", err)
	}
	return res.Content, nil
}

// Send posts content without waiting for the created message.
func (d *Discord) Send(ctx context.Context, content string) error {
	req, err := d.newJSONRequest(ctx, http.MethodPost, nil, content)
	if err != nil {
		return err
	}
	_, err = d.do(req, "send message")
	return err
}

// endpoint joins the unescaped path elements onto the webhook URL.
func (d *Discord) endpoint(params url.Values, elem ...string) (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", err
	}
	if len(elem) > 0 {
		u = u.JoinPath(elem...)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (d *Discord) newJSONRequest(ctx context.Context, method string, params url.Values, content string, elem ...string) (*http.Request, error) {
	u, err := d.endpoint(params, elem...)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(messageRequest{Content: content})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (d *Discord) do(req *http.Request, op string) ([]byte, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
