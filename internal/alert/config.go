// Package alert posts channel events to webhooks.
package alert

import "fmt"

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     toml:"url"     json:"url"`
	Format  string            `yaml:"format"  toml:"format"  json:"format"` // "generic", "slack"
	Events  []string          `yaml:"events"  toml:"events"  json:"events"` // event kinds ("reject", "attach") or error kinds ("outflow_exceeded")
	Headers map[string]string `yaml:"headers" toml:"headers" json:"headers"`
}

// Validate rejects destinations that could never fire.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("alert: url is required")
	}
	switch c.Format {
	case "", "generic", "slack":
	default:
		return fmt.Errorf("alert: unknown format %q", c.Format)
	}
	if len(c.Events) == 0 {
		return fmt.Errorf("alert: %s has no events", c.URL)
	}
	return nil
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp  string `json:"timestamp"`
	Channel    string `json:"channel"`
	Kind       string `json:"kind"`
	Op         string `json:"op,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	PacketID   int64  `json:"packet_id,omitempty"`
	Driver     string `json:"driver,omitempty"`
	State      string `json:"state,omitempty"`
	Outflow    int64  `json:"outflow"`
	MaxOutflow int64  `json:"max_outflow"`
	ConfigHash string `json:"config_hash,omitempty"`
}
