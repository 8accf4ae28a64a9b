package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	title := event.Kind
	if event.ErrorKind != "" {
		title = fmt.Sprintf("%s %s: %s", event.Kind, event.Op, event.ErrorKind)
	}

	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Channel:* %s", event.Channel)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Outflow:* %d/%d", event.Outflow, event.MaxOutflow)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*State:* %s", event.State)},
	}
	if event.Driver != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Driver:* %s", event.Driver)})
	}
	if event.Error != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Error:* %s", event.Error)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("netpipe: %s", title),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}
