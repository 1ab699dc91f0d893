package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/rsicalc/internal/utils"
)

const defaultTelegramURL = "https://api.telegram.org"

type TelegramNotifier struct {
	Token   string
	ChatID  string
	BaseURL string
	Retries int
	Delay   time.Duration

	client *http.Client
}

// NewTelegramNotifier creates a notifier posting to the Bot API. An empty
// proxyURL sends directly.
func NewTelegramNotifier(token, chatID, proxyURL string, retries int, delay time.Duration) *TelegramNotifier {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		} else {
			utils.GetLogger().Printf("Notifier | Ignoring invalid proxy URL %q: %v", proxyURL, err)
		}
	}
	return &TelegramNotifier{
		Token:   token,
		ChatID:  chatID,
		BaseURL: defaultTelegramURL,
		Retries: retries,
		Delay:   delay,
		client:  &http.Client{Timeout: 15 * time.Second, Transport: transport},
	}
}

func (t *TelegramNotifier) Send(message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.Token)
	resp, err := t.client.PostForm(apiURL, url.Values{
		"chat_id": {t.ChatID},
		"text":    {message},
	})
	if err != nil {
		return t.redact(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram send failed: %s", resp.Status)
	}
	return nil
}

// redact removes the bot token from the request URL carried by transport errors.
func (t *TelegramNotifier) redact(err error) error {
	var urlErr *url.Error
	if t.Token != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, t.Token, "<redacted>")
	}
	return err
}

func (t *TelegramNotifier) SendWithRetry(message string) error {
	err := retry(context.Background(), t.Retries, t.Delay, func() error {
		return t.Send(message)
	})
	if err != nil {
		utils.GetLogger().Printf("Notifier | Telegram message dropped: %v", err)
	}
	return err
}
