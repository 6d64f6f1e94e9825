package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"timetrack/backend/internal/service"
)

type ActiveOptions struct {
	*RootOptions
	User string
}

func NewActiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Show a user's running or paused timer",
		Example: `  timerctl active --user 6f1c0e7a-...
  timerctl active --user 6f1c0e7a-... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActive(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runActive(opts *ActiveOptions, cmd *cobra.Command) error {
	svc, err := openServices(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	timer, apiErr := svc.timers.Active(cmd.Context(), opts.User)
	if apiErr != nil {
		return fromAPIError("failed to get active timer", apiErr)
	}

	return render(cmd.OutOrStdout(), opts.Format, map[string]interface{}{"timer": timer}, func(w io.Writer) error {
		if timer == nil {
			_, err := fmt.Fprintf(w, "No active timer for user %s\n", opts.User)
			return err
		}
		return writeTimerTable(w, []service.TimerView{*timer})
	})
}

type ListOptions struct {
	*RootOptions
	User      string
	Status    string
	ProjectID string
	Limit     int
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's timers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (RUNNING|PAUSED|COMPLETED|CANCELED)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "filter by project id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of timers (1-200)")
	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	svc, err := openServices(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	timers, apiErr := svc.timers.List(cmd.Context(), opts.User, service.ListTimersInput{
		Status:    opts.Status,
		ProjectID: opts.ProjectID,
		Limit:     opts.Limit,
	})
	if apiErr != nil {
		return fromAPIError("failed to list timers", apiErr)
	}

	return render(cmd.OutOrStdout(), opts.Format, map[string]interface{}{"timers": timers}, func(w io.Writer) error {
		if len(timers) == 0 {
			_, err := fmt.Fprintln(w, "No timers found")
			return err
		}
		return writeTimerTable(w, timers)
	})
}

type CancelOptions struct {
	*RootOptions
	User  string
	Timer string
}

func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CancelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a running or paused timer",
		Long: `Cancel a timer on behalf of its owner. The timer keeps the elapsed
time recorded up to its last pause and earns no completion reward.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "owner user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Timer, "timer", "", "timer id (required)")
	_ = cmd.MarkFlagRequired("timer")
	return cmd
}

func runCancel(opts *CancelOptions, cmd *cobra.Command) error {
	svc, err := openServices(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	timer, apiErr := svc.timers.Cancel(cmd.Context(), opts.User, opts.Timer)
	if apiErr != nil {
		return fromAPIError("failed to cancel timer", apiErr)
	}

	return render(cmd.OutOrStdout(), opts.Format, map[string]interface{}{"timer": timer}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Canceled timer %s after %s\n", timer.ID, formatElapsed(timer.RecordedElapsedMs))
		return err
	})
}
