// Package netpipe is the public face of the netpipe channel library. It
// opens in-process channels bounded by width and outflow, or connects to
// a netpipe server over gRPC.
//
// Usage:
//
//	ch, err := netpipe.Open(netpipe.Width16, netpipe.WithMaxOutflow(10))
//	defer ch.Close()
//	ch.Attach(ctx, netpipe.Driver("nic0"), netpipe.Forced)
//	ch.Guard().Precheck(1, 7)
//	receipt, err := ch.Send([]byte{0, 0, 0, 7}, 1)
//
// A send fails with ErrOutflowExceeded once the ceiling would be crossed;
// errors.Is works the same on in-process and remote errors.
package netpipe
