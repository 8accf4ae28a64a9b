package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/corbin-r/net-pipe/internal/checksum"
	"github.com/corbin-r/net-pipe/internal/config"
)

var (
	signAlgorithm string
	signPacket    bool
)

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVarP(&signAlgorithm, "algorithm", "a", "", "Signature algorithm (crc32|castagnoli|murmur3, default from config)")
	signCmd.Flags().BoolVar(&signPacket, "packet", false, "Treat the argument as a hex packet instead of a check value")
}

var signCmd = &cobra.Command{
	Use:   "sign <check|hex-packet>",
	Short: "Print the signature a precheck would register",
	Args:  cobra.ExactArgs(1),
	RunE:  runSign,
}

func runSign(cmd *cobra.Command, args []string) error {
	algo, err := resolveAlgorithm(signAlgorithm)
	if err != nil {
		return err
	}
	guard := checksum.NewGuard(checksum.WithAlgorithm(algo))

	var sig uint32
	if signPacket {
		packet, err := decodeHex(args[0])
		if err != nil {
			return err
		}
		sig, err = guard.SignPacket(packet)
		if err != nil {
			return err
		}
	} else {
		check, err := strconv.ParseInt(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid check value %q: %w", args[0], err)
		}
		sig, err = guard.Sign(check)
		if err != nil {
			return err
		}
	}

	out, _ := json.MarshalIndent(map[string]any{
		"input":     args[0],
		"algorithm": string(algo),
		"signature": sig,
		"hex":       fmt.Sprintf("%08x", sig),
	}, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func resolveAlgorithm(flag string) (checksum.Algorithm, error) {
	if flag != "" {
		return checksum.ParseAlgorithm(flag)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.Algorithm(), nil
}
