package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/beacon/cmd/gen"
)

var RootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Beacon is a small in-memory key/value server that speaks RESP",
	Long: `Beacon is a small in-memory key/value server that speaks RESP, the Redis
serialization protocol. It supports PING, GET and SET, so redis-cli and most
Redis clients can talk to it.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(PingCmd)
	RootCmd.AddCommand(GetCmd)
	RootCmd.AddCommand(SetCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
