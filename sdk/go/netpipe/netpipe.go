package netpipe

import (
	"time"

	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/client"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/model"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

type (
	Width        = pipe.Width
	Channel      = pipe.Channel
	Receipt      = pipe.Receipt
	Kind         = pipe.Kind
	Mode         = driver.Mode
	State        = driver.State
	Ref          = driver.Ref
	Request      = driver.Request
	Outcome      = driver.Outcome
	Evaluator    = driver.Evaluator
	Algorithm    = checksum.Algorithm
	Guard        = checksum.Guard
	Event        = model.Event
	Observer     = model.Observer
	ObserverFunc = model.ObserverFunc
	Remote       = client.Client
	RemoteOpen   = client.OpenOptions
)

const (
	Width16 = pipe.Width16
	Width32 = pipe.Width32
	Width64 = pipe.Width64

	Forced   = driver.ModeForced
	Explicit = driver.ModeExplicit

	NullOrigin      = driver.NullOrigin
	Rejected        = driver.Rejected
	ForcedState     = driver.Forced
	ExplicitState   = driver.Explicit
	CRC32           = checksum.CRC32
	Castagnoli      = checksum.Castagnoli
	Murmur3         = checksum.Murmur3
	MaxPipeOutflow  = pipe.MaxPipeOutflow
	PreconditionTTL = driver.DefaultPreconditionTimeout
)

var (
	ErrPacketTooWide      = pipe.ErrPacketTooWide
	ErrDriverNotAttached  = pipe.ErrDriverNotAttached
	ErrChecksumMismatch   = pipe.ErrChecksumMismatch
	ErrOutflowExceeded    = pipe.ErrOutflowExceeded
	ErrEmptyPacket        = pipe.ErrEmptyPacket
	ErrChannelClosed      = pipe.ErrChannelClosed
	ErrDuplicatePrecheck  = checksum.ErrDuplicatePrecheck
	ErrNoCRCAvailable     = checksum.ErrNoCRCAvailable
	ErrNullDriver         = driver.ErrNullDriver
	ErrDriverUnavailable  = driver.ErrDriverUnavailable
	ErrPreconditionFailed = driver.ErrPreconditionFailed
	ErrNoDriverAttached   = driver.ErrNoDriverAttached
	ErrDriverAttached     = driver.ErrDriverAttached
)

// Option configures Open.
type Option func(*settings)

type settings struct {
	pipeOpts  []pipe.Option
	guard     *Guard
	algorithm Algorithm
	refs      []Ref
	observers model.Observers
}

// WithMaxOutflow sets the outflow ceiling in bytes.
func WithMaxOutflow(n int64) Option {
	return func(s *settings) { s.pipeOpts = append(s.pipeOpts, pipe.WithMaxOutflow(n)) }
}

// WithAlgorithm selects the signature algorithm for the channel's guard.
func WithAlgorithm(a Algorithm) Option {
	return func(s *settings) { s.algorithm = a }
}

// WithGuard shares one guard between channels. It takes precedence over
// WithAlgorithm.
func WithGuard(g *Guard) Option {
	return func(s *settings) { s.guard = g }
}

// WithEvaluator judges explicit-mode attach preconditions.
func WithEvaluator(e Evaluator) Option {
	return func(s *settings) { s.pipeOpts = append(s.pipeOpts, pipe.WithEvaluator(e)) }
}

// WithShellPreconditions runs explicit-mode preconditions through /bin/sh.
func WithShellPreconditions() Option {
	return WithEvaluator(driver.NewExecEvaluator())
}

// WithPreconditionTimeout bounds each precondition evaluation.
func WithPreconditionTimeout(d time.Duration) Option {
	return func(s *settings) { s.pipeOpts = append(s.pipeOpts, pipe.WithPreconditionTimeout(d)) }
}

// WithDrivers restricts attach to the listed drivers.
func WithDrivers(refs ...Ref) Option {
	return func(s *settings) { s.refs = append(s.refs, refs...) }
}

// WithObserver receives channel events. May be given more than once.
func WithObserver(o Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

// WithName labels the channel.
func WithName(name string) Option {
	return func(s *settings) { s.pipeOpts = append(s.pipeOpts, pipe.WithName(name)) }
}

// Open creates an in-process channel. The channel is single-owner:
// serialize calls when sharing it across goroutines.
func Open(width Width, opts ...Option) (*Channel, error) {
	s := settings{algorithm: checksum.DefaultAlgorithm}
	for _, o := range opts {
		o(&s)
	}
	guard := s.guard
	if guard == nil {
		guard = NewGuard(s.algorithm)
	}
	popts := append([]pipe.Option{pipe.WithGuard(guard)}, s.pipeOpts...)
	if len(s.refs) > 0 {
		popts = append(popts, pipe.WithCatalog(driver.NewMapCatalog(s.refs...)))
	}
	if len(s.observers) > 0 {
		popts = append(popts, pipe.WithObserver(s.observers))
	}
	return pipe.Open(width, popts...)
}

// NewGuard creates a checksum guard signing with a.
func NewGuard(a Algorithm) *Guard {
	return checksum.NewGuard(checksum.WithAlgorithm(a))
}

// Driver returns a reference to the named driver with no precondition.
func Driver(name string) Ref {
	return Ref{Name: name}
}

// DriverWhen returns a reference whose explicit-mode precondition passes
// when command exits with condition.
func DriverWhen(name, command string, condition uint32) Ref {
	return Ref{Name: name, Precondition: Request{Command: command, Condition: condition}}
}

// StaticEvaluator answers preconditions from a fixed command table.
func StaticEvaluator(results map[string]bool) Evaluator {
	return driver.NewStaticEvaluator(results)
}

// KindOf names the error's kind, e.g. "outflow_exceeded".
func KindOf(err error) Kind {
	return pipe.KindOf(err)
}

// Dial connects to a netpipe server.
func Dial(addr string) (*Remote, error) {
	return client.New(addr)
}
