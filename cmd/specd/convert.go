package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"specd/internal/convert"
)

// buildConvertCmd converts a TF.js model.json to Keras .h5 offline, using the
// same converter the server runs after uploads.
func buildConvertCmd(ro *rootOptions) *cobra.Command {
	bin := envStr("SPECD_CONVERTER_BIN", "")
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "convert <model.json> <out.h5>",
		Short: "Convert a TF.js layers model to Keras HDF5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(ro.logLevel, ro.logFormat, cmd.ErrOrStderr())
			c := convert.NewCommandConverter(bin, timeout, log)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := c.Convert(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&bin, "converter-bin", bin, "tensorflowjs_converter binary (default: looked up on PATH)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Conversion timeout (0 keeps the default)")
	return cmd
}
