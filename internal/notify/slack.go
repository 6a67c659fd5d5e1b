package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrSlackDisabled = errors.New("slack disabled")

// Slack posts to an incoming webhook.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil for an empty webhook so callers can leave it out of a Multi.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Block Kit message: header with the alert title, one mrkdwn field per
// "Key: value" line, and the error (if any) in a code block. Text is the
// notification fallback.
type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

// Slack allows at most 10 fields per section.
const maxSlackFields = 10

func refreshMessage(title, text string) slackPayload {
	p := slackPayload{
		Text: title,
		Blocks: []slackBlock{{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: title},
		}},
	}
	var (
		fields  []slackText
		errText string
	)
	for _, f := range parseFields(text) {
		if f.key == "Error" {
			errText = f.value
			continue
		}
		fields = append(fields, slackText{Type: "mrkdwn", Text: "*" + f.key + "*\n" + f.value})
	}
	for len(fields) > 0 {
		n := min(len(fields), maxSlackFields)
		p.Blocks = append(p.Blocks, slackBlock{Type: "section", Fields: fields[:n]})
		fields = fields[n:]
	}
	if errText != "" {
		p.Text += ": " + errText
		p.Blocks = append(p.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "```" + errText + "```"},
		})
	}
	return p
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return ErrSlackDisabled
	}
	body, err := json.Marshal(refreshMessage(title, text))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack webhook: %s", resp.Status)
	}
	return nil
}
