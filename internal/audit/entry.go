package audit

// EntryPacket is the packet part of an audit entry.
type EntryPacket struct {
	ID    int64 `json:"id"`
	Bytes int   `json:"bytes"`
}

// Entry is one line in the hash-chained JSONL audit log.
// All fields are structs or scalars (no map[string]any) so json.Marshal
// field order is deterministic and line hashes are reproducible.
type Entry struct {
	Timestamp  string      `json:"ts"`
	Channel    string      `json:"channel"`
	Event      string      `json:"event"`
	Op         string      `json:"op,omitempty"`
	Width      int         `json:"width"`
	Packet     EntryPacket `json:"packet"`
	Outflow    int64       `json:"outflow"`
	MaxOutflow int64       `json:"max_outflow"`
	Driver     string      `json:"driver,omitempty"`
	State      string      `json:"state"`
	ErrorKind  string      `json:"error_kind,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	ConfigHash string      `json:"config_hash,omitempty"`
	PrevHash   string      `json:"prev_hash"`
}
