// Package server exposes pipe channels over gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	pb "github.com/corbin-r/net-pipe/api/pipe/v1"
	"github.com/corbin-r/net-pipe/internal/alert"
	"github.com/corbin-r/net-pipe/internal/audit"
	"github.com/corbin-r/net-pipe/internal/config"
	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/model"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

// alertDrainTimeout bounds how long Close waits for webhook deliveries.
const alertDrainTimeout = 5 * time.Second

// Config holds gRPC server configuration.
type Config struct {
	// ConfigPath is the netpipe config file; empty uses the default path.
	ConfigPath string
	// AuditLogPath overrides audit.path from the config file.
	AuditLogPath string
	// Observer receives every channel event in addition to the audit log.
	Observer model.Observer
}

type handle struct {
	mu sync.Mutex
	ch *pipe.Channel
}

// Server hosts the PipeService. Each open channel lives behind a handle
// whose mutex serializes every call on that channel.
type Server struct {
	mu         sync.RWMutex
	settings   *config.Config
	configHash string

	handles sync.Map // handle id → *handle
	names   sync.Map // channel name → handle id, live channels only
	live    atomic.Int64
	seq     atomic.Uint64
	retired *tombstones

	auditLog *audit.Log
	alerts   *alert.Dispatcher
	previous []*alert.Dispatcher // replaced by Reload, still serving older channels
	logger   zerolog.Logger
	cfg      Config

	grpcServer *grpc.Server
}

// New creates a gRPC server from the config file and opens the audit log.
func New(cfg Config) (*Server, error) {
	settings, hash, err := config.LoadWithHash(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	auditPath := settings.Audit.Path
	if cfg.AuditLogPath != "" {
		auditPath = cfg.AuditLogPath
	}

	var auditLog *audit.Log
	if auditPath != "" {
		auditLog, err = audit.Open(auditPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		auditLog.SetConfigHash(hash)
	}

	s := &Server{
		settings:   settings,
		configHash: hash,
		auditLog:   auditLog,
		alerts:     alert.NewDispatcher(settings.Alerts, hash),
		retired:    newTombstones(retiredLimit),
		logger:     logging.For("server"),
		cfg:        cfg,
	}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.translateErrors))

	pb.RegisterPipeServiceServer(s.grpcServer, &service{srv: s})
	return s, nil
}

// Serve listens on addr, or the configured server.addr when empty. Blocks until stopped.
func (s *Server) Serve(addr string) error {
	if addr == "" {
		addr = s.Settings().Server.Addr
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.grpcServer.Serve(lis)
}

// ServeOn starts the gRPC server on the given listener. For testing.
func (s *Server) ServeOn(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Close closes every open channel, drains pending alerts and closes the
// audit log.
func (s *Server) Close() error {
	s.handles.Range(func(key, value any) bool {
		id, h := key.(string), value.(*handle)
		h.mu.Lock()
		if err := h.ch.Close(); err != nil {
			s.logger.Error().Str("handle", id).Err(err).Msg("failed to close channel")
		}
		s.retire(id, h.ch)
		h.mu.Unlock()
		return true
	})

	s.mu.RLock()
	dispatchers := append([]*alert.Dispatcher{s.alerts}, s.previous...)
	s.mu.RUnlock()
	ctx, cancel := context.WithTimeout(context.Background(), alertDrainTimeout)
	defer cancel()
	for _, d := range dispatchers {
		if d == nil {
			continue
		}
		if err := d.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("pending alerts abandoned")
		}
	}
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// Settings returns the active configuration.
func (s *Server) Settings() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// ConfigHash returns the hash of the active config file.
func (s *Server) ConfigHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configHash
}

// Reload re-reads the config file. Open channels keep the settings they
// were opened with; new channels use the reloaded ones.
func (s *Server) Reload() error {
	settings, hash, err := config.LoadWithHash(s.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	s.mu.Lock()
	s.settings = settings
	s.configHash = hash
	if s.alerts != nil {
		s.previous = append(s.previous, s.alerts)
	}
	s.alerts = alert.NewDispatcher(settings.Alerts, hash)
	s.mu.Unlock()

	if s.auditLog != nil {
		s.auditLog.SetConfigHash(hash)
	}
	if settings.Log.Level != "" {
		logging.SetLevel(settings.Log.Level)
	}
	s.logger.Info().Str("config_hash", hash).Msg("config reloaded")
	return nil
}

func (s *Server) nextHandle() string {
	return fmt.Sprintf("h-%d", s.seq.Add(1))
}

func (s *Server) observers() model.Observer {
	obs := model.Observers{}
	if s.auditLog != nil {
		obs = append(obs, s.auditLog)
	}
	if s.cfg.Observer != nil {
		obs = append(obs, s.cfg.Observer)
	}
	if d := s.dispatcher(); d != nil {
		obs = append(obs, d)
	}
	return obs
}

func (s *Server) dispatcher() *alert.Dispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alerts
}

// OpenHandles returns how many channels are open.
func (s *Server) OpenHandles() int {
	return int(s.live.Load())
}

// reserve claims name for handle id. Channel names are unique among open
// channels so the audit log can follow each one.
func (s *Server) reserve(name, id string) error {
	if _, taken := s.names.LoadOrStore(name, id); taken {
		return status.Errorf(codes.AlreadyExists, "channel name %q is in use", name)
	}
	return nil
}

func (s *Server) register(id string, ch *pipe.Channel) {
	s.handles.Store(id, &handle{ch: ch})
	s.live.Add(1)
}

// retire drops a closed channel, leaving a tombstone so later calls on
// id report channel_closed. Callers hold the handle's mutex.
func (s *Server) retire(id string, ch *pipe.Channel) {
	if _, ok := s.handles.Load(id); !ok {
		return
	}
	s.retired.add(id, retiredFrom(ch))
	s.handles.Delete(id)
	s.live.Add(-1)
	s.names.CompareAndDelete(ch.Name(), id)
}

func (s *Server) lookup(id string) (*handle, error) {
	v, ok := s.handles.Load(id)
	if !ok {
		if _, closed := s.retired.get(id); closed {
			return nil, fmt.Errorf("%w: handle %s", pipe.ErrChannelClosed, id)
		}
		return nil, status.Errorf(codes.NotFound, "unknown handle %q", id)
	}
	return v.(*handle), nil
}

// withChannel runs fn with exclusive access to the handle's channel.
func (s *Server) withChannel(id string, fn func(*pipe.Channel) error) error {
	h, err := s.lookup(id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.ch)
}

// translateErrors turns pipe errors into gRPC statuses and reports the
// error kind in a trailer so clients can restore the sentinel.
func (s *Server) translateErrors(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if _, ok := status.FromError(err); ok {
		return nil, err
	}
	kind := pipe.KindOf(err)
	if kind == pipe.KindUnknown {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		}
	}
	grpc.SetTrailer(ctx, metadata.Pairs(pb.ErrorKindTrailer, string(kind)))
	s.logger.Debug().Str("method", info.FullMethod).Str("kind", string(kind)).Err(err).Msg("call failed")
	return nil, status.Error(codeFor(kind), err.Error())
}

func codeFor(kind pipe.Kind) codes.Code {
	switch kind {
	case pipe.KindPacketTooWide, pipe.KindEmptyPacket, pipe.KindInvalidWidth,
		pipe.KindInvalidOutflow, pipe.KindInvalidMode, pipe.KindNullDriver, pipe.KindNoCRCAvailable:
		return codes.InvalidArgument
	case pipe.KindOutflowExceeded:
		return codes.ResourceExhausted
	case pipe.KindChecksumMismatch:
		return codes.PermissionDenied
	case pipe.KindDuplicatePrecheck, pipe.KindDriverAttached:
		return codes.AlreadyExists
	case pipe.KindDriverNotAttached, pipe.KindNoDriverAttached, pipe.KindChannelClosed,
		pipe.KindPreconditionFail, pipe.KindDriverUnavailable:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
