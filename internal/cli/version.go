package cli

import (
	"fmt"
	"runtime"

	"github.com/LeJamon/goLedgerApply/internal/core/protocol"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ledgerapply version %s\n", rootCmd.Version)
		fmt.Fprintf(out, "Liabilities from protocol version: %d\n", protocol.VersionLiabilities)
		fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
