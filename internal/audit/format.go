package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	label := result.Channel
	if label == "" {
		label = "all channels"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Channel: %s | No entries found.\n", label)
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Channel: %s | %s–%s UTC\n", label, first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		event := strings.ToUpper(e.Event)
		detail := ""
		switch e.Event {
		case "send":
			detail = fmt.Sprintf("packet=%d bytes=%d", e.Packet.ID, e.Packet.Bytes)
		case "reject":
			detail = fmt.Sprintf("%s %s", e.Op, e.ErrorKind)
		case "attach", "detach":
			detail = e.Driver
		}
		b.WriteString(fmt.Sprintf("%-10s %-12s %-8s %-32s %d/%d\n",
			ts, truncate(e.Channel, 12), event, truncate(detail, 32), e.Outflow, e.MaxOutflow))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{fmt.Sprintf("%d send", s.Sends)}
	if s.Rejects > 0 {
		kinds := make([]string, 0, len(s.RejectsByKind))
		for k, n := range s.RejectsByKind {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(kinds)
		parts = append(parts, fmt.Sprintf("%d reject (%s)", s.Rejects, strings.Join(kinds, ", ")))
	}
	if s.Attaches > 0 {
		parts = append(parts, fmt.Sprintf("%d attach", s.Attaches))
	}
	if s.Detaches > 0 {
		parts = append(parts, fmt.Sprintf("%d detach", s.Detaches))
	}
	return fmt.Sprintf("Summary: %s | Bytes moved: %d\n", strings.Join(parts, ", "), s.BytesMoved)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
