package commands

import (
	"context"
	"fmt"
	"time"

	"mediaref/pkg/client"

	"github.com/spf13/cobra"
)

var (
	resolveRemote string
	resolveViewer string
	resolveTTL    time.Duration
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <ref>...",
	Short: "Resolve stored references into signed URLs",
	Long: `Resolve each reference into a time-limited signed URL.
Unrecognized references and references whose signing fails are printed unchanged.
With --remote the references are resolved by a running mref-server, which only
signs private media for its owner (--as).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var urls []string
		if resolveRemote != "" {
			c, err := client.NewResolverClient(resolveRemote)
			if err != nil {
				return err
			}
			defer c.Close()
			c.Viewer = resolveViewer

			urls, err = c.ResolveBatch(ctx, args)
			if err != nil {
				return fmt.Errorf("remote resolve failed: %w", err)
			}
		} else {
			if MREF == nil {
				return fmt.Errorf("app not initialized")
			}
			ttl := resolveTTL
			if ttl <= 0 {
				ttl = MREF.Resolver.TTL()
			}
			urls = MREF.Resolver.ResolveAllTTL(ctx, args, ttl)
		}

		for _, u := range urls {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveRemote, "remote", "", "resolve via mref-server at this gRPC address")
	resolveCmd.Flags().StringVar(&resolveViewer, "as", "", "viewer identity sent to the server (--remote only)")
	resolveCmd.Flags().DurationVar(&resolveTTL, "ttl", 0, "signed URL lifetime (local mode; default resolver.ttl)")
	rootCmd.AddCommand(resolveCmd)
}
