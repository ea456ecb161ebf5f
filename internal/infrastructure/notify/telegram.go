// Package notify delivers report-completion messages.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketScanner/internal/ports"
)

const telegramAPI = "https://api.telegram.org"

// Telegram posts completion messages to a chat via the bot API.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Notifier = (*Telegram)(nil)

// NewTelegram registers bot token and chat identifier.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramAPI,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// SendReportCompletion posts a Markdown summary. It reports false without
// error when the bot is not configured.
func (n *Telegram) SendReportCompletion(ctx context.Context, msg ports.ReportNotification) (bool, error) {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return false, nil
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", telegramText(msg))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("telegram error: %s", resp.Status)
	}

	return true, nil
}

func telegramText(msg ports.ReportNotification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Competitive analysis ready*: %s\n", msg.ProjectName)
	fmt.Fprintf(&b, "Run `%s`, %d finding(s)\n", msg.RunID, len(msg.Findings))
	for _, line := range highlights(msg, 3) {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func highlights(msg ports.ReportNotification, n int) []string {
	out := make([]string, 0, n)
	for _, f := range msg.Findings {
		if len(out) == n {
			break
		}
		out = append(out, f.Text)
	}
	return out
}
