// Package pipe moves width-bounded packets through an outflow-capped
// channel. A send is admitted only while a driver is attached and the
// packet's checksum was prechecked with the channel's Guard.
//
// A Channel is single-owner: callers that share one across goroutines
// must serialize every call on it. Open a channel, defer Close, and use
// it in between; Close detaches the driver on every exit path.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/model"
)

// MaxPipeOutflow is the default outflow ceiling in bytes.
const MaxPipeOutflow int64 = 1024

var channelSeq atomic.Uint64

// Receipt confirms a delivered packet.
type Receipt struct {
	Channel     string    `json:"channel"`
	PacketID    int64     `json:"packet_id"`
	Bytes       int       `json:"bytes"`
	Signature   uint32    `json:"signature"`
	Outflow     int64     `json:"outflow"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Channel is an open pipe.
type Channel struct {
	name       string
	width      Width
	maxOutflow int64
	outflow    int64
	closed     bool

	guard    *checksum.Guard
	stack    *driver.Stack
	observer model.Observer
	logger   zerolog.Logger
	now      func() time.Time
}

type options struct {
	name       string
	maxOutflow int64
	guard      *checksum.Guard
	evaluator  driver.Evaluator
	catalog    driver.Catalog
	timeout    time.Duration
	observer   model.Observer
	logger     *zerolog.Logger
}

// Option configures Open.
type Option func(*options)

// WithMaxOutflow overrides the MaxPipeOutflow ceiling.
func WithMaxOutflow(n int64) Option {
	return func(o *options) { o.maxOutflow = n }
}

// WithGuard shares a checksum Guard. Without it the channel owns a private one.
func WithGuard(g *checksum.Guard) Option {
	return func(o *options) { o.guard = g }
}

// WithEvaluator sets the precondition evaluator for explicit attach.
func WithEvaluator(e driver.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

// WithCatalog limits attach to known drivers.
func WithCatalog(c driver.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithPreconditionTimeout bounds each precondition evaluation.
func WithPreconditionTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithObserver receives channel events.
func WithObserver(obs model.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithName labels the channel in events and logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// Open creates a channel of the given width with zero outflow and no driver.
func Open(width Width, opts ...Option) (*Channel, error) {
	o := options{maxOutflow: MaxPipeOutflow}
	for _, opt := range opts {
		opt(&o)
	}
	if !width.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, int(width))
	}
	if o.maxOutflow <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOutflow, o.maxOutflow)
	}
	if o.name == "" {
		o.name = fmt.Sprintf("pipe-%d", channelSeq.Add(1))
	}

	logger := logging.For("pipe")
	if o.logger != nil {
		logger = *o.logger
	}
	logger = logger.With().Str("channel", o.name).Logger()

	guard := o.guard
	if guard == nil {
		guard = checksum.NewGuard(checksum.WithLogger(logger))
	}

	stackOpts := []driver.StackOption{driver.WithLogger(logger), driver.WithTimeout(o.timeout)}
	if o.evaluator != nil {
		stackOpts = append(stackOpts, driver.WithEvaluator(o.evaluator))
	}
	if o.catalog != nil {
		stackOpts = append(stackOpts, driver.WithCatalog(o.catalog))
	}

	ch := &Channel{
		name:       o.name,
		width:      width,
		maxOutflow: o.maxOutflow,
		guard:      guard,
		stack:      driver.NewStack(stackOpts...),
		observer:   o.observer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	ch.emit(model.Event{Kind: model.EventOpen})
	logger.Debug().Str("width", width.String()).Int64("max_outflow", o.maxOutflow).Msg("channel opened")
	return ch, nil
}

// Send delivers packet, validated against the record prechecked for packetID.
// Checks run in order: width, driver, outflow, checksum. A failed send
// leaves the outflow counter unchanged.
func (c *Channel) Send(packet []byte, packetID int64) (Receipt, error) {
	if c.closed {
		return Receipt{}, ErrChannelClosed
	}

	sig, err := c.admit(packet, packetID)
	if err != nil {
		c.reject("send", packetID, len(packet), err)
		return Receipt{}, err
	}

	c.outflow += int64(len(packet))
	r := Receipt{
		Channel:     c.name,
		PacketID:    packetID,
		Bytes:       len(packet),
		Signature:   sig,
		Outflow:     c.outflow,
		DeliveredAt: c.now(),
	}
	c.emit(model.Event{Kind: model.EventSend, PacketID: packetID, Bytes: len(packet)})
	return r, nil
}

// SendContext is Send bounded by ctx: an expired context fails the send
// before any state changes.
func (c *Channel) SendContext(ctx context.Context, packet []byte, packetID int64) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("send packet %d: %w", packetID, err)
	}
	return c.Send(packet, packetID)
}

func (c *Channel) admit(packet []byte, packetID int64) (uint32, error) {
	n := len(packet)
	if n == 0 {
		return 0, fmt.Errorf("%w: packet %d", ErrEmptyPacket, packetID)
	}
	if !c.width.Admits(n) {
		return 0, fmt.Errorf("%w: %d bits > %d bits on %s", ErrPacketTooWide, n*8, c.width.MaxPacketBits(), c.width)
	}
	if !c.stack.Attached() {
		return 0, fmt.Errorf("%w: stack is %s", ErrDriverNotAttached, c.stack.State())
	}
	if c.outflow+int64(n) > c.maxOutflow {
		return 0, fmt.Errorf("%w: %d + %d > %d bytes", ErrOutflowExceeded, c.outflow, n, c.maxOutflow)
	}
	sig, ok := c.guard.ValidatePacket(packetID, packet)
	if !ok {
		return 0, fmt.Errorf("%w: packet %d", ErrChecksumMismatch, packetID)
	}
	return sig, nil
}

// Attach loads a driver onto the channel's stack.
func (c *Channel) Attach(ctx context.Context, ref driver.Ref, mode driver.Mode) error {
	if c.closed {
		return ErrChannelClosed
	}
	if err := c.stack.Attach(ctx, ref, mode); err != nil {
		c.reject("attach", 0, 0, err)
		return err
	}
	c.emit(model.Event{Kind: model.EventAttach, Driver: ref.Name})
	return nil
}

// Detach unloads the channel's driver.
func (c *Channel) Detach() error {
	if c.closed {
		return ErrChannelClosed
	}
	ref, _ := c.stack.Driver()
	if err := c.stack.Detach(); err != nil {
		c.reject("detach", 0, 0, err)
		return err
	}
	c.emit(model.Event{Kind: model.EventDetach, Driver: ref.Name})
	return nil
}

// Close detaches any driver, resets outflow and retires the channel.
// Closing a closed channel is a no-op.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	if ref, ok := c.stack.Driver(); ok {
		if err := c.stack.Detach(); err != nil && !errors.Is(err, driver.ErrNoDriverAttached) {
			return err
		}
		c.emit(model.Event{Kind: model.EventDetach, Driver: ref.Name})
	}
	moved := c.outflow
	c.outflow = 0
	c.closed = true
	c.emit(model.Event{Kind: model.EventClose, Bytes: int(moved)})
	c.logger.Debug().Int64("moved", moved).Msg("channel closed")
	return nil
}

// Guard returns the checksum guard validating this channel's packets.
func (c *Channel) Guard() *checksum.Guard { return c.guard }

// Name returns the channel label.
func (c *Channel) Name() string { return c.name }

// Width returns the pipe variant.
func (c *Channel) Width() Width { return c.width }

// MaxOutflow returns the outflow ceiling in bytes.
func (c *Channel) MaxOutflow() int64 { return c.maxOutflow }

// Outflow returns the bytes moved since the channel was opened.
func (c *Channel) Outflow() int64 { return c.outflow }

// Remaining returns how many more bytes may cross before the ceiling.
func (c *Channel) Remaining() int64 { return c.maxOutflow - c.outflow }

// DriverState returns the stack's admission state.
func (c *Channel) DriverState() driver.State { return c.stack.State() }

// AttachedAt returns when the current driver was loaded, or the zero time.
func (c *Channel) AttachedAt() time.Time { return c.stack.AttachedAt() }

// Driver returns the attached driver, if any.
func (c *Channel) Driver() (driver.Ref, bool) { return c.stack.Driver() }

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool { return c.closed }

func (c *Channel) reject(op string, packetID int64, n int, err error) {
	c.logger.Debug().Str("op", op).Int64("packet_id", packetID).Err(err).Msg("rejected")
	c.emit(model.Event{
		Kind:      model.EventReject,
		Op:        op,
		PacketID:  packetID,
		Bytes:     n,
		ErrorKind: string(KindOf(err)),
		Error:     err.Error(),
	})
}

func (c *Channel) emit(e model.Event) {
	if c.observer == nil {
		return
	}
	ref, _ := c.stack.Driver()
	e.Channel = c.name
	e.Width = int(c.width)
	e.Outflow = c.outflow
	e.MaxOutflow = c.maxOutflow
	e.State = c.stack.State().String()
	if e.Driver == "" {
		e.Driver = ref.Name
	}
	if e.At.IsZero() {
		e.At = c.now()
	}
	c.observer.Observe(e)
}
