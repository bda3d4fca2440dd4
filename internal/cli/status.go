package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wall_go/models"
)

func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Показать состояние заявки и её публикаций",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad submission id %q", args[0])
			}
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			s, err := e.db.GetSubmission(ctx, id)
			if err != nil {
				return err
			}
			records, err := e.db.ListRecords(ctx, id)
			if err != nil {
				return err
			}
			printSubmission(cmd.OutOrStdout(), s, records)
			return nil
		},
	}
}

func statusColor(s models.SubmissionStatus) *color.Color {
	switch s {
	case models.StatusPublished, models.StatusApproved, models.StatusQueued:
		return color.New(color.FgGreen)
	case models.StatusRejected, models.StatusDeleted, models.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func printSubmission(w io.Writer, s *models.Submission, records map[string]*models.PublishRecord) {
	fmt.Fprintf(w, "#%d %s (group %s, sender %s)\n", s.ID, statusColor(s.Status).Sprint(s.Status), s.AccountGroup, s.Sender)
	if s.PublishNumber != nil {
		fmt.Fprintf(w, "  publish number: %d\n", *s.PublishNumber)
	}
	fmt.Fprintf(w, "  anonymous: %t  safe: %t  complete: %t  needs rerender: %t\n",
		s.IsAnonymous, s.IsSafe, s.IsComplete, s.NeedsRerender)
	fmt.Fprintf(w, "  text: %s\n", s.Text)

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := records[name]
		c := color.New(color.FgYellow)
		switch r.Status {
		case models.RecordSucceeded:
			c = color.New(color.FgGreen)
		case models.RecordFailed:
			c = color.New(color.FgRed)
		}
		fmt.Fprintf(w, "  %-10s %s attempts=%d", name, c.Sprint(r.Status), r.Attempts)
		if r.ExternalID != "" {
			fmt.Fprintf(w, " id=%s", r.ExternalID)
		}
		if r.LastError != "" {
			fmt.Fprintf(w, " error=%q", r.LastError)
		}
		fmt.Fprintln(w)
	}
}
