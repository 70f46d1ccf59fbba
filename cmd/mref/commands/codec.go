package commands

import (
	"fmt"

	"mediaref/pkg/refcodec"

	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:         "decode <ref>",
	Short:       "Decode a stored reference into bucket and path",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{offlineAnnotation: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, ok := refcodec.Decode(args[0])
		if !ok {
			return fmt.Errorf("unrecognized reference: %q", args[0])
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "bucket: %s\n", loc.Bucket)
		fmt.Fprintf(out, "path:   %s\n", loc.Path)

		// 旧格式顺便给出新格式，方便迁移
		if !refcodec.IsComposite(args[0]) {
			fmt.Fprintf(out, "ref:    %s\n", refcodec.Encode(loc.Bucket, loc.Path))
		}
		return nil
	},
}

var encodeCmd = &cobra.Command{
	Use:         "encode <bucket> <path>",
	Short:       "Build a composite stored reference",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{offlineAnnotation: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), refcodec.Encode(args[0], args[1]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd, encodeCmd)
}
