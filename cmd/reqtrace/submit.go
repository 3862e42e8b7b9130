package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fyrsmithlabs/reqtrace/internal/submission"
	"github.com/spf13/cobra"
)

type submitOptions struct {
	name      string
	operation string
	priority  string
	debug     bool
	notes     string
	endpoint  string
}

// errSubmissionFailed makes the command exit non-zero after the failed
// state has been printed.
var errSubmissionFailed = errors.New("submission failed")

func newSubmitCmd(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	defaults := submission.NewForm()

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one request and print its traceparent",
		Long: `Submit one request to the configured endpoint with a fresh traceparent header.

Examples:
  # Submit with defaults (create, normal)
  reqtrace submit --name "rotate keys"

  # Submit a high-priority delete to a different endpoint
  reqtrace submit --name cleanup --operation delete --priority high \
    --endpoint http://localhost:8080/api/requests`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "request name (required)")
	f.StringVar(&opts.operation, "operation", string(defaults.Operation), "operation: create, update or delete")
	f.StringVar(&opts.priority, "priority", string(defaults.Priority), "priority: low, normal or high")
	f.BoolVar(&opts.debug, "debug", false, "include debug metadata")
	f.StringVar(&opts.notes, "notes", "", "free-form notes")
	f.StringVar(&opts.endpoint, "endpoint", "", "override the configured client endpoint")
	return cmd
}

func (o *submitOptions) form() (submission.Form, error) {
	op, err := submission.ParseOperation(o.operation)
	if err != nil {
		return submission.Form{}, err
	}
	pr, err := submission.ParsePriority(o.priority)
	if err != nil {
		return submission.Form{}, err
	}
	return submission.Form{
		RequestName:          o.name,
		Operation:            op,
		Priority:             pr,
		IncludeDebugMetadata: o.debug,
		Notes:                o.notes,
	}, nil
}

func runSubmit(cmd *cobra.Command, root *rootOptions, opts *submitOptions) error {
	form, err := opts.form()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, root, "stderr")
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	state, err := a.newSubmitter(opts.endpoint).Submit(ctx, form, func(s submission.State) {
		if s.Busy() {
			fmt.Fprintf(out, "submitting  traceparent=%s\n", s.Traceparent)
		}
	})

	var verr *submission.ValidationError
	if errors.As(err, &verr) {
		printFieldErrors(cmd.ErrOrStderr(), verr.Fields)
		return err
	}
	if err != nil {
		return err
	}

	printState(out, state)
	if state.Kind == submission.KindFailed {
		return errSubmissionFailed
	}
	return nil
}

func printFieldErrors(w io.Writer, errs submission.FieldErrors) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, errs[k])
	}
}

func printState(w io.Writer, s submission.State) {
	switch s.Kind {
	case submission.KindSuccess:
		fmt.Fprintf(w, "success     status=%d traceparent=%s\n", s.Status, s.Traceparent)
	case submission.KindFailed:
		if s.Status != 0 {
			fmt.Fprintf(w, "error       status=%d traceparent=%s\n", s.Status, s.Traceparent)
		} else {
			fmt.Fprintf(w, "error       traceparent=%s\n", s.Traceparent)
		}
		fmt.Fprintf(w, "            %s\n", s.Message)
	default:
		fmt.Fprintf(w, "%s\n", s.Kind)
	}
}
