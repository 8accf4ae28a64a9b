package pipe

import (
	"errors"

	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/driver"
)

var (
	ErrPacketTooWide     = errors.New("pipe: packet exceeds pipe width")
	ErrDriverNotAttached = errors.New("pipe: driver not attached")
	ErrChecksumMismatch  = errors.New("pipe: checksum mismatch")
	ErrOutflowExceeded   = errors.New("pipe: outflow exceeded")
	ErrEmptyPacket       = errors.New("pipe: empty packet")
	ErrChannelClosed     = errors.New("pipe: channel closed")
	ErrInvalidWidth      = errors.New("pipe: invalid width")
	ErrInvalidOutflow    = errors.New("pipe: invalid max outflow")
)

// Kind is a stable, transport-safe name for an error.
type Kind string

const (
	KindOK                Kind = "ok"
	KindPacketTooWide     Kind = "packet_too_wide"
	KindDriverNotAttached Kind = "driver_not_attached"
	KindChecksumMismatch  Kind = "checksum_mismatch"
	KindOutflowExceeded   Kind = "outflow_exceeded"
	KindEmptyPacket       Kind = "empty_packet"
	KindChannelClosed     Kind = "channel_closed"
	KindInvalidWidth      Kind = "invalid_width"
	KindInvalidOutflow    Kind = "invalid_outflow"
	KindDuplicatePrecheck Kind = "duplicate_precheck"
	KindNoCRCAvailable    Kind = "no_crc_available"
	KindNullDriver        Kind = "null_driver"
	KindDriverUnavailable Kind = "driver_unavailable"
	KindPreconditionFail  Kind = "precondition_failed"
	KindNoDriverAttached  Kind = "no_driver_attached"
	KindDriverAttached    Kind = "driver_attached"
	KindInvalidMode       Kind = "invalid_mode"
	KindUnknown           Kind = "unknown"
)

var kinds = []struct {
	kind Kind
	err  error
}{
	{KindPacketTooWide, ErrPacketTooWide},
	{KindDriverNotAttached, ErrDriverNotAttached},
	{KindChecksumMismatch, ErrChecksumMismatch},
	{KindOutflowExceeded, ErrOutflowExceeded},
	{KindEmptyPacket, ErrEmptyPacket},
	{KindChannelClosed, ErrChannelClosed},
	{KindInvalidWidth, ErrInvalidWidth},
	{KindInvalidOutflow, ErrInvalidOutflow},
	{KindDuplicatePrecheck, checksum.ErrDuplicatePrecheck},
	{KindNoCRCAvailable, checksum.ErrNoCRCAvailable},
	{KindNullDriver, driver.ErrNullDriver},
	{KindDriverUnavailable, driver.ErrDriverUnavailable},
	{KindPreconditionFail, driver.ErrPreconditionFailed},
	{KindNoDriverAttached, driver.ErrNoDriverAttached},
	{KindDriverAttached, driver.ErrDriverAttached},
	{KindInvalidMode, driver.ErrInvalidMode},
}

// KindOf classifies err. A nil error is KindOK.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// ErrorFor returns the sentinel error for kind, or nil for KindOK and
// unrecognized kinds.
func ErrorFor(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
