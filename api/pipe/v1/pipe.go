// Package pipev1 is the wire contract of the netpipe.v1.PipeService.
//
// The contract is handwritten: messages are plain structs carried by a
// JSON codec registered under the "json" content-subtype.
package pipev1

// ErrorKindTrailer carries the stable error kind of a failed call.
const ErrorKindTrailer = "netpipe-error-kind"

type OpenRequest struct {
	Name       string `json:"name,omitempty"`
	Width      int32  `json:"width,omitempty"`
	MaxOutflow int64  `json:"max_outflow,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
}

type OpenResponse struct {
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Width      int32  `json:"width"`
	MaxOutflow int64  `json:"max_outflow"`
	Algorithm  string `json:"algorithm"`
}

type SendRequest struct {
	Handle   string `json:"handle"`
	PacketId int64  `json:"packet_id"`
	Packet   []byte `json:"packet"`
}

type SendResponse struct {
	PacketId    int64  `json:"packet_id"`
	Bytes       int32  `json:"bytes"`
	Signature   uint32 `json:"signature"`
	Outflow     int64  `json:"outflow"`
	DeliveredAt string `json:"delivered_at"`
}

type CloseRequest struct {
	Handle string `json:"handle"`
}

type CloseResponse struct {
	Moved int64 `json:"moved"`
}

// AttachRequest names a driver from the server's catalog. The precondition
// an explicit attach runs is always the catalog's.
type AttachRequest struct {
	Handle string `json:"handle"`
	Driver string `json:"driver"`
	Mode   string `json:"mode"`
}

type AttachResponse struct {
	State string `json:"state"`
}

type DetachRequest struct {
	Handle string `json:"handle"`
}

type DetachResponse struct {
	State string `json:"state"`
}

// PrecheckRequest registers a signature for PacketId. Packet, when set,
// is signed instead of Check.
type PrecheckRequest struct {
	Handle   string `json:"handle"`
	PacketId int64  `json:"packet_id"`
	Check    int64  `json:"check,omitempty"`
	Packet   []byte `json:"packet,omitempty"`
}

type PrecheckResponse struct {
	Signature uint32 `json:"signature"`
}

type InvalidateRequest struct {
	Handle   string `json:"handle"`
	PacketId int64  `json:"packet_id"`
}

type InvalidateResponse struct{}

type ValidateRequest struct {
	Handle    string `json:"handle"`
	PacketId  int64  `json:"packet_id"`
	Signature uint32 `json:"signature"`
}

type ValidateResponse struct {
	Valid bool `json:"valid"`
}

type StatRequest struct {
	Handle string `json:"handle"`
}

type StatResponse struct {
	Handle     string `json:"handle"`
	Name       string `json:"name"`
	Width      int32  `json:"width"`
	MaxOutflow int64  `json:"max_outflow"`
	Outflow    int64  `json:"outflow"`
	Remaining  int64  `json:"remaining"`
	State      string `json:"state"`
	Driver     string `json:"driver,omitempty"`
	AttachedAt string `json:"attached_at,omitempty"`
	Checks     int32  `json:"checks"`
	Algorithm  string `json:"algorithm"`
	Closed     bool   `json:"closed"`
}
