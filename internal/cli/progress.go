package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type ProgressOptions struct {
	*RootOptions
	User string
}

func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a user's XP, level and achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.User, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runProgress(opts *ProgressOptions, cmd *cobra.Command) error {
	svc, err := openServices(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	progress, apiErr := svc.rewards.Progress(cmd.Context(), opts.User)
	if apiErr != nil {
		return fromAPIError("failed to get progress", apiErr)
	}

	return render(cmd.OutOrStdout(), opts.Format, map[string]interface{}{"progress": progress}, func(w io.Writer) error {
		codes := make([]string, 0, len(progress.Achievements))
		for _, achievement := range progress.Achievements {
			codes = append(codes, achievement.Code)
		}
		achievements := "none"
		if len(codes) > 0 {
			achievements = strings.Join(codes, ", ")
		}
		_, err := fmt.Fprintf(w,
			"Level %d (%d XP)\nCompleted timers: %d\nTracked: %s\nAchievements: %s\n",
			progress.Level,
			progress.XP,
			progress.CompletedTimers,
			formatElapsed(progress.TotalTrackedMs),
			achievements,
		)
		return err
	})
}
