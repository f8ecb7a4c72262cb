package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// fact is one labelled figure shown in chat notifications.
type fact struct {
	Name  string
	Value string
}

// facts lists the window state an alert was raised or resolved at.
func facts(a *Alert) []fact {
	out := []fact{
		{"Median degree", strconv.FormatFloat(a.Median, 'f', 2, 64)},
		{"Participants", strconv.Itoa(a.Participants)},
		{"Window transactions", strconv.Itoa(a.WindowLen)},
		{"Emission", "#" + strconv.FormatUint(a.Seq, 10)},
	}
	if !a.Watermark.IsZero() {
		out = append(out, fact{"Watermark", a.Watermark.UTC().Format(time.RFC3339)})
	}
	return out
}

func headline(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("Resolved: %s (median %.2f)", a.RuleName, a.Median)
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(a.Severity), a.Message)
}

func color(a *Alert) string {
	if a.State == StateResolved {
		return "2EB67D"
	}
	switch a.Severity {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	}
	return "00D4FF"
}

// payloads encodes an alert for each supported webhook type.
var payloads = map[string]func(a *Alert) ([]byte, error){
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  func(a *Alert) ([]byte, error) { return json.Marshal(map[string]*Alert{"alert": a}) },
}

// slackPayload uses a legacy attachment so the figures render as short fields
// beside a severity colour bar.
func slackPayload(a *Alert) ([]byte, error) {
	type field struct {
		Title string `json:"title"`
		Value string `json:"value"`
		Short bool   `json:"short"`
	}
	fs := facts(a)
	fields := make([]field, 0, len(fs))
	for _, f := range fs {
		fields = append(fields, field{Title: f.Name, Value: f.Value, Short: true})
	}
	return json.Marshal(map[string]interface{}{
		"text": headline(a),
		"attachments": []map[string]interface{}{{
			"color":  "#" + color(a),
			"fields": fields,
		}},
	})
}

func teamsPayload(a *Alert) ([]byte, error) {
	type teamsFact struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	fs := facts(a)
	tf := make([]teamsFact, 0, len(fs))
	for _, f := range fs {
		tf = append(tf, teamsFact{Name: f.Name, Value: f.Value})
	}
	return json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color(a),
		"summary":    a.RuleName,
		"title":      headline(a),
		"sections":   []map[string]interface{}{{"facts": tf}},
	})
}

// deliverAll posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliverAll(a *Alert) {
	e.mu.Lock()
	webhooks := e.webhooks
	e.mu.Unlock()

	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		encode, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		body, err := encode(a)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "seq", a.Seq, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, body []byte) error {
	resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alerts: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
