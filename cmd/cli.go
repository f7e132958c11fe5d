package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/beacon/client"
)

var (
	// The server the client commands talk to
	serverAddr string

	// How long a client command may take, connecting included
	timeout time.Duration
)

func init() {
	for _, cmd := range []*cobra.Command{PingCmd, GetCmd, SetCmd} {
		flags := cmd.PersistentFlags()

		flags.StringVarP(&serverAddr, "addr", "a", "127.0.0.1:6379", "The address of the Beacon server")
		flags.DurationVar(&timeout, "timeout", 5*time.Second, "Give up after this long")
	}
}

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a Beacon server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Conn) error {
			if err := c.Ping(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		})
	},
}

var GetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value of a key",
	Long: `Print the value of a key.

Prints (nil) if the key has never been set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Conn) error {
			value, ok, err := c.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "(nil)")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		})
	},
}

var SetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set the value of a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Conn) error {
			if err := c.Set(ctx, args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		})
	},
}

func withClient(cmd *cobra.Command, fn func(context.Context, *client.Conn) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := client.Dial(ctx, serverAddr, nil)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	return fn(ctx, c)
}
