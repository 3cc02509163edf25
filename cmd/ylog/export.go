package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bft-labs/ylog/internal/logsheet"
)

func newExportCommand() *cobra.Command {
	var in, out string
	var sortByTime bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Merge every bracket of a logsheet into a single bracket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()

			contacts, err := logsheet.DecodeAll(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", in, err)
			}
			if sortByTime {
				contacts = logsheet.SortChronological(contacts)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				of, err := os.Create(out)
				if err != nil {
					return err
				}
				defer of.Close()
				w = of
			}
			return logsheet.Encode(w, contacts)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "logsheet to read")
	cmd.Flags().StringVar(&out, "out", "", "write here instead of stdout")
	cmd.Flags().BoolVar(&sortByTime, "sort", false, "order contacts by time instead of submission order")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
