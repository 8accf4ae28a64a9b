// Package client talks to a netpipe server over gRPC.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	pb "github.com/corbin-r/net-pipe/api/pipe/v1"
	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

// DefaultTimeout bounds each call. Attach gets twice as long so a
// precondition that runs to its own deadline still reports back.
const DefaultTimeout = 5 * time.Second

// ErrUnknownHandle is returned for a handle the server never issued.
var ErrUnknownHandle = errors.New("client: unknown channel handle")

// RemoteError is a pipe error reported by the server. It unwraps to the
// matching sentinel so errors.Is works across the wire.
type RemoteError struct {
	Kind    pipe.Kind
	Message string
	err     error
}

func (e *RemoteError) Error() string { return e.Message }
func (e *RemoteError) Unwrap() error { return e.err }

// Handle identifies a channel opened on the server.
type Handle struct {
	ID         string
	Name       string
	Width      pipe.Width
	MaxOutflow int64
	Algorithm  checksum.Algorithm
}

// OpenOptions overrides server defaults for one channel. Zero fields
// keep the server's configured values.
type OpenOptions struct {
	Name       string
	Width      pipe.Width
	MaxOutflow int64
	Algorithm  checksum.Algorithm
}

// Stat is a channel snapshot.
type Stat struct {
	Handle     string
	Name       string
	Width      pipe.Width
	MaxOutflow int64
	Outflow    int64
	Remaining  int64
	State      driver.State
	Driver     string
	Checks     int
	Algorithm  checksum.Algorithm
	Closed     bool
	AttachedAt time.Time
}

// Client connects to a netpipe gRPC server.
type Client struct {
	conn    *grpc.ClientConn
	client  pb.PipeServiceClient
	timeout time.Duration
}

// New creates a gRPC client connected to the given address.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to netpipe server: %w", err)
	}
	return &Client{
		conn:    conn,
		client:  pb.NewPipeServiceClient(conn),
		timeout: DefaultTimeout,
	}, nil
}

// Open creates a channel on the server.
func (c *Client) Open(opts OpenOptions) (Handle, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.OpenResponse, error) {
		return c.client.Open(ctx, &pb.OpenRequest{
			Name:       opts.Name,
			Width:      int32(opts.Width),
			MaxOutflow: opts.MaxOutflow,
			Algorithm:  string(opts.Algorithm),
		}, co...)
	})
	if err != nil {
		return Handle{}, err
	}
	return Handle{
		ID:         resp.Handle,
		Name:       resp.Name,
		Width:      pipe.Width(resp.Width),
		MaxOutflow: resp.MaxOutflow,
		Algorithm:  checksum.Algorithm(resp.Algorithm),
	}, nil
}

// Send delivers packet on the channel.
func (c *Client) Send(h string, packetID int64, packet []byte) (pipe.Receipt, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.SendResponse, error) {
		return c.client.Send(ctx, &pb.SendRequest{Handle: h, PacketId: packetID, Packet: packet}, co...)
	})
	if err != nil {
		return pipe.Receipt{}, err
	}
	at, _ := time.Parse(time.RFC3339Nano, resp.DeliveredAt)
	return pipe.Receipt{
		PacketID:    resp.PacketId,
		Bytes:       int(resp.Bytes),
		Signature:   resp.Signature,
		Outflow:     resp.Outflow,
		DeliveredAt: at,
	}, nil
}

// CloseChannel retires the channel and returns the bytes it moved.
func (c *Client) CloseChannel(h string) (int64, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.CloseResponse, error) {
		return c.client.Close(ctx, &pb.CloseRequest{Handle: h}, co...)
	})
	if err != nil {
		return 0, err
	}
	return resp.Moved, nil
}

// Attach loads the named driver onto the channel and returns the resulting
// state. In explicit mode the server runs the precondition its driver
// catalog holds for name.
func (c *Client) Attach(h, name string, mode driver.Mode) (driver.State, error) {
	resp, err := call(c, 2*c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.AttachResponse, error) {
		return c.client.Attach(ctx, &pb.AttachRequest{Handle: h, Driver: name, Mode: string(mode)}, co...)
	})
	if err != nil {
		return driver.NullOrigin, err
	}
	return driver.ParseState(resp.State)
}

// Detach unloads the channel's driver.
func (c *Client) Detach(h string) (driver.State, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.DetachResponse, error) {
		return c.client.Detach(ctx, &pb.DetachRequest{Handle: h}, co...)
	})
	if err != nil {
		return driver.NullOrigin, err
	}
	return driver.ParseState(resp.State)
}

// Precheck registers the signature of check for packetID.
func (c *Client) Precheck(h string, packetID, check int64) (uint32, error) {
	return c.precheck(&pb.PrecheckRequest{Handle: h, PacketId: packetID, Check: check})
}

// PrecheckPacket registers the signature of a raw packet.
func (c *Client) PrecheckPacket(h string, packetID int64, packet []byte) (uint32, error) {
	return c.precheck(&pb.PrecheckRequest{Handle: h, PacketId: packetID, Packet: packet})
}

func (c *Client) precheck(req *pb.PrecheckRequest) (uint32, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.PrecheckResponse, error) {
		return c.client.Precheck(ctx, req, co...)
	})
	if err != nil {
		return 0, err
	}
	return resp.Signature, nil
}

// Invalidate drops the record for packetID.
func (c *Client) Invalidate(h string, packetID int64) error {
	_, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.InvalidateResponse, error) {
		return c.client.Invalidate(ctx, &pb.InvalidateRequest{Handle: h, PacketId: packetID}, co...)
	})
	return err
}

// Validate reports whether signature matches the record for packetID.
func (c *Client) Validate(h string, packetID int64, signature uint32) (bool, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.ValidateResponse, error) {
		return c.client.Validate(ctx, &pb.ValidateRequest{Handle: h, PacketId: packetID, Signature: signature}, co...)
	})
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// Stat returns a snapshot of the channel.
func (c *Client) Stat(h string) (Stat, error) {
	resp, err := call(c, c.timeout, func(ctx context.Context, co ...grpc.CallOption) (*pb.StatResponse, error) {
		return c.client.Stat(ctx, &pb.StatRequest{Handle: h}, co...)
	})
	if err != nil {
		return Stat{}, err
	}
	state, err := driver.ParseState(resp.State)
	if err != nil {
		return Stat{}, err
	}
	var attachedAt time.Time
	if resp.AttachedAt != "" {
		if attachedAt, err = time.Parse(time.RFC3339Nano, resp.AttachedAt); err != nil {
			return Stat{}, fmt.Errorf("invalid attached_at %q: %w", resp.AttachedAt, err)
		}
	}
	return Stat{
		Handle:     resp.Handle,
		Name:       resp.Name,
		Width:      pipe.Width(resp.Width),
		MaxOutflow: resp.MaxOutflow,
		Outflow:    resp.Outflow,
		Remaining:  resp.Remaining,
		State:      state,
		Driver:     resp.Driver,
		Checks:     int(resp.Checks),
		Algorithm:  checksum.Algorithm(resp.Algorithm),
		Closed:     resp.Closed,
		AttachedAt: attachedAt,
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func call[Resp any](c *Client, timeout time.Duration, fn func(context.Context, ...grpc.CallOption) (*Resp, error)) (*Resp, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var trailer metadata.MD
	resp, err := fn(ctx, grpc.Trailer(&trailer))
	if err != nil {
		return nil, restore(err, trailer)
	}
	return resp, nil
}

// restore maps a gRPC failure back onto the pipe sentinel it came from.
func restore(err error, trailer metadata.MD) error {
	st, _ := status.FromError(err)
	if kinds := trailer.Get(pb.ErrorKindTrailer); len(kinds) > 0 {
		kind := pipe.Kind(kinds[0])
		if sentinel := pipe.ErrorFor(kind); sentinel != nil {
			return &RemoteError{Kind: kind, Message: st.Message(), err: sentinel}
		}
	}
	if st.Code() == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, st.Message())
	}
	return fmt.Errorf("netpipe rpc: %w", err)
}
