package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wall_go/internal/app"
	"wall_go/internal/publish"
)

// FlushCmd публикует очередь группы разово, без запуска ботов.
func FlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush <group>",
		Short: "Опубликовать накопленные посты группы",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, e, err := offlineApp(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			defer a.Close()

			rep, err := a.Scheduler.Flush(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

func ClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <group>",
		Short: "Убрать очередь группы без публикации",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, e, err := offlineApp(cmd)
			if err != nil {
				return err
			}
			defer e.close()
			defer a.Close()

			if _, ok := a.Config.Group(args[0]); !ok {
				return fmt.Errorf("unknown group %q", args[0])
			}
			n, err := a.Scheduler.Clear(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s posts from %s\n", color.New(color.FgYellow).Sprint(n), args[0])
			return nil
		},
	}
}

// offlineApp собирает приложение без ботов: только хранилище и публикаторы.
func offlineApp(cmd *cobra.Command) (*app.App, *env, error) {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return nil, nil, err
	}
	opts, err := app.Adapters(e.cfg, e.db, e.log)
	if err != nil {
		e.close()
		return nil, nil, err
	}
	opts.Receivers = nil
	a, err := app.New(cmd.Context(), opts)
	if err != nil {
		e.close()
		return nil, nil, err
	}
	return a, e, nil
}

func printReport(w io.Writer, rep *publish.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(w, "group %s, %d posts\n", rep.Group, rep.Posts)
	fmt.Fprintf(w, "  succeeded: %s\n", green(rep.Succeeded))
	fmt.Fprintf(w, "  failed:    %s\n", red(rep.Failed))
	fmt.Fprintf(w, "  retrying:  %s\n", yellow(rep.Retrying))
	fmt.Fprintf(w, "  skipped:   %d\n", rep.Skipped)
	fmt.Fprintf(w, "  finished:  %d\n", rep.Finished)
}
