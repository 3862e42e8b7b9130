package main

import (
	"encoding/json"
	"fmt"

	"github.com/fyrsmithlabs/reqtrace/internal/tracecontext"
	"github.com/spf13/cobra"
)

func newTraceparentCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "traceparent",
		Short: "Print a fresh W3C traceparent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tp, err := tracecontext.Generate()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, tp.String())
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"traceparent": tp.String(),
				"traceId":     tp.TraceID,
				"parentId":    tp.ParentID,
				"traceFlags":  tp.TraceFlags,
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print every field as JSON")
	return cmd
}
