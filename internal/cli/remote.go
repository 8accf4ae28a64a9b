package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/client"
	"github.com/corbin-r/net-pipe/internal/driver"
	"github.com/corbin-r/net-pipe/internal/pipe"
)

var (
	remoteAddr string

	openWidth      string
	openMaxOutflow int64
	openName       string
	openAlgorithm  string

	attachMode string

	precheckPacket bool
)

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "127.0.0.1:7465", "netpipe server address")

	remoteCmd.AddCommand(remoteOpenCmd, remoteAttachCmd, remoteDetachCmd, remotePrecheckCmd,
		remoteSendCmd, remoteStatCmd, remoteCloseCmd)

	remoteOpenCmd.Flags().StringVar(&openWidth, "width", "", "Pipe width (16|32|64, default from server config)")
	remoteOpenCmd.Flags().Int64Var(&openMaxOutflow, "max-outflow", 0, "Outflow ceiling in bytes (default from server config)")
	remoteOpenCmd.Flags().StringVar(&openName, "name", "", "Channel name")
	remoteOpenCmd.Flags().StringVar(&openAlgorithm, "algorithm", "", "Signature algorithm")

	remoteAttachCmd.Flags().StringVar(&attachMode, "mode", "forced", "Attach mode (forced|explicit); explicit runs the server's catalog precondition")

	remotePrecheckCmd.Flags().BoolVar(&precheckPacket, "packet", false, "Treat the value as a hex packet")
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Drive channels on a running netpipe server",
}

var remoteOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a channel and print its handle",
	Args:  cobra.NoArgs,
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		opts := client.OpenOptions{
			Name:       openName,
			MaxOutflow: openMaxOutflow,
			Algorithm:  checksum.Algorithm(openAlgorithm),
		}
		if openWidth != "" {
			w, err := pipe.ParseWidth(openWidth)
			if err != nil {
				return err
			}
			opts.Width = w
		}
		h, err := c.Open(opts)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{
			"handle":      h.ID,
			"name":        h.Name,
			"width":       int(h.Width),
			"max_outflow": h.MaxOutflow,
			"algorithm":   string(h.Algorithm),
		})
	}),
}

var remoteAttachCmd = &cobra.Command{
	Use:   "attach <handle> <driver>",
	Short: "Attach a driver to a channel",
	Args:  cobra.ExactArgs(2),
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		mode, err := driver.ParseMode(attachMode)
		if err != nil {
			return err
		}
		state, err := c.Attach(args[0], args[1], mode)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"handle": args[0], "state": state.String()})
	}),
}

var remoteDetachCmd = &cobra.Command{
	Use:   "detach <handle>",
	Short: "Detach a channel's driver",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		state, err := c.Detach(args[0])
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"handle": args[0], "state": state.String()})
	}),
}

var remotePrecheckCmd = &cobra.Command{
	Use:   "precheck <handle> <packet-id> <check|hex-packet>",
	Short: "Register a packet signature",
	Args:  cobra.ExactArgs(3),
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid packet id %q: %w", args[1], err)
		}
		var sig uint32
		if precheckPacket {
			packet, err := decodeHex(args[2])
			if err != nil {
				return err
			}
			sig, err = c.PrecheckPacket(args[0], id, packet)
			if err != nil {
				return err
			}
		} else {
			check, err := strconv.ParseInt(args[2], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid check value %q: %w", args[2], err)
			}
			sig, err = c.Precheck(args[0], id, check)
			if err != nil {
				return err
			}
		}
		return printJSON(out, map[string]any{"packet_id": id, "signature": sig})
	}),
}

var remoteSendCmd = &cobra.Command{
	Use:   "send <handle> <packet-id> <hex-packet>",
	Short: "Send a packet through a channel",
	Args:  cobra.ExactArgs(3),
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid packet id %q: %w", args[1], err)
		}
		packet, err := decodeHex(args[2])
		if err != nil {
			return err
		}
		r, err := c.Send(args[0], id, packet)
		if err != nil {
			return err
		}
		return printJSON(out, r)
	}),
}

var remoteStatCmd = &cobra.Command{
	Use:   "stat <handle>",
	Short: "Show channel state",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		st, err := c.Stat(args[0])
		if err != nil {
			return err
		}
		fields := map[string]any{
			"handle":      st.Handle,
			"name":        st.Name,
			"width":       int(st.Width),
			"max_outflow": st.MaxOutflow,
			"outflow":     st.Outflow,
			"remaining":   st.Remaining,
			"state":       st.State.String(),
			"driver":      st.Driver,
			"checks":      st.Checks,
			"algorithm":   string(st.Algorithm),
			"closed":      st.Closed,
		}
		if !st.AttachedAt.IsZero() {
			fields["attached_at"] = st.AttachedAt
		}
		return printJSON(out, fields)
	}),
}

var remoteCloseCmd = &cobra.Command{
	Use:   "close <handle>",
	Short: "Close a channel",
	Args:  cobra.ExactArgs(1),
	RunE: withClient(func(c *client.Client, out io.Writer, args []string) error {
		moved, err := c.CloseChannel(args[0])
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"handle": args[0], "moved": moved})
	}),
}

func withClient(fn func(*client.Client, io.Writer, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := client.New(remoteAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(c, cmd.OutOrStdout(), args)
	}
}

func decodeHex(raw string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex packet %q: %w", raw, err)
	}
	return b, nil
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
