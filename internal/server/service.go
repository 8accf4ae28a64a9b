package server

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/corbin-r/net-pipe/api/pipe/v1"
	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

// service binds the PipeService RPCs to a Server.
type service struct {
	pb.UnimplementedPipeServiceServer
	srv *Server
}

func (v *service) Open(ctx context.Context, req *pb.OpenRequest) (*pb.OpenResponse, error) {
	s := v.srv
	settings := s.Settings()

	width := settings.Width()
	if req.Width != 0 {
		width = pipe.Width(req.Width)
	}
	maxOutflow := settings.Pipe.MaxOutflow
	if req.MaxOutflow != 0 {
		maxOutflow = req.MaxOutflow
	}
	algo := settings.Algorithm()
	if req.Algorithm != "" {
		a, err := checksum.ParseAlgorithm(req.Algorithm)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		algo = a
	}

	id := s.nextHandle()
	name := req.Name
	if name == "" {
		name = id
	}
	if err := s.reserve(name, id); err != nil {
		return nil, err
	}

	opts := append(settings.ChannelOptions(),
		pipe.WithMaxOutflow(maxOutflow),
		pipe.WithName(name),
		pipe.WithGuard(checksum.NewGuard(checksum.WithAlgorithm(algo))),
		pipe.WithObserver(s.observers()),
	)
	ch, err := pipe.Open(width, opts...)
	if err != nil {
		s.names.CompareAndDelete(name, id)
		return nil, err
	}
	s.register(id, ch)
	s.logger.Debug().Str("handle", id).Str("channel", name).Msg("channel opened")

	return &pb.OpenResponse{
		Handle:     id,
		Name:       name,
		Width:      int32(ch.Width()),
		MaxOutflow: ch.MaxOutflow(),
		Algorithm:  string(algo),
	}, nil
}

func (v *service) Send(ctx context.Context, req *pb.SendRequest) (*pb.SendResponse, error) {
	var r pipe.Receipt
	err := v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		var err error
		r, err = ch.SendContext(ctx, req.Packet, req.PacketId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pb.SendResponse{
		PacketId:    r.PacketID,
		Bytes:       int32(r.Bytes),
		Signature:   r.Signature,
		Outflow:     r.Outflow,
		DeliveredAt: r.DeliveredAt.Format(time.RFC3339Nano),
	}, nil
}

// Close retires the channel and frees its handle. Closing a closed handle
// is a no-op; other calls on it report channel_closed.
func (v *service) Close(ctx context.Context, req *pb.CloseRequest) (*pb.CloseResponse, error) {
	s := v.srv
	var moved int64
	err := s.withChannel(req.Handle, func(ch *pipe.Channel) error {
		moved = ch.Outflow()
		if err := ch.Close(); err != nil {
			return err
		}
		s.retire(req.Handle, ch)
		return nil
	})
	if errors.Is(err, pipe.ErrChannelClosed) {
		return &pb.CloseResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("handle", req.Handle).Int64("moved", moved).Msg("channel closed")
	return &pb.CloseResponse{Moved: moved}, nil
}

// Attach names the driver only. An explicit attach runs the precondition
// from the server's driver catalog, never one supplied by the caller.
func (v *service) Attach(ctx context.Context, req *pb.AttachRequest) (*pb.AttachResponse, error) {
	mode, err := driver.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	ref := driver.Ref{Name: req.Driver}
	var state driver.State
	err = v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		err := ch.Attach(ctx, ref, mode)
		state = ch.DriverState()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pb.AttachResponse{State: state.String()}, nil
}

func (v *service) Detach(ctx context.Context, req *pb.DetachRequest) (*pb.DetachResponse, error) {
	var state driver.State
	err := v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		err := ch.Detach()
		state = ch.DriverState()
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pb.DetachResponse{State: state.String()}, nil
}

func (v *service) Precheck(ctx context.Context, req *pb.PrecheckRequest) (*pb.PrecheckResponse, error) {
	var sig uint32
	err := v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		if ch.Closed() {
			return pipe.ErrChannelClosed
		}
		var err error
		if len(req.Packet) > 0 {
			sig, err = ch.Guard().PrecheckPacket(req.PacketId, req.Packet)
		} else {
			sig, err = ch.Guard().Precheck(req.PacketId, req.Check)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &pb.PrecheckResponse{Signature: sig}, nil
}

func (v *service) Invalidate(ctx context.Context, req *pb.InvalidateRequest) (*pb.InvalidateResponse, error) {
	err := v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		if ch.Closed() {
			return pipe.ErrChannelClosed
		}
		return ch.Guard().Invalidate(req.PacketId)
	})
	if err != nil {
		return nil, err
	}
	return &pb.InvalidateResponse{}, nil
}

func (v *service) Validate(ctx context.Context, req *pb.ValidateRequest) (*pb.ValidateResponse, error) {
	var ok bool
	err := v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		if ch.Closed() {
			return pipe.ErrChannelClosed
		}
		ok = ch.Guard().Validate(req.PacketId, req.Signature)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pb.ValidateResponse{Valid: ok}, nil
}

func (v *service) Stat(ctx context.Context, req *pb.StatRequest) (*pb.StatResponse, error) {
	if r, ok := v.srv.retired.get(req.Handle); ok {
		return r.stat(req.Handle), nil
	}
	resp := &pb.StatResponse{Handle: req.Handle}
	err := v.srv.withChannel(req.Handle, func(ch *pipe.Channel) error {
		ref, _ := ch.Driver()
		if at := ch.AttachedAt(); !at.IsZero() {
			resp.AttachedAt = at.Format(time.RFC3339Nano)
		}
		resp.Name = ch.Name()
		resp.Width = int32(ch.Width())
		resp.MaxOutflow = ch.MaxOutflow()
		resp.Outflow = ch.Outflow()
		resp.Remaining = ch.Remaining()
		resp.State = ch.DriverState().String()
		resp.Driver = ref.Name
		resp.Checks = int32(ch.Guard().Len())
		resp.Algorithm = string(ch.Guard().Algorithm())
		resp.Closed = ch.Closed()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
