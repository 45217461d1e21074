package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/logger"
	"github.com/autobrr/prunetree/pkg/metrics"
	"github.com/autobrr/prunetree/pkg/notification"
	"github.com/autobrr/prunetree/pkg/prune"
)

func RunCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     "run DIR...",
		Aliases: []string{"prune"},
		Short:   "Replace identical files with hard links",
		Long: `This command scans every directory given, finds files with identical content and
replaces the copies with hard links to a single inode.`,
		Example: `  prunetree run /data
  prunetree run --dry-run --algorithm sha256 /data /backup`,
		Args: cobra.MinimumNArgs(1),
	}

	addRunFlags(command.Flags())

	command.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		cfg, err := initCore(cmd.Flags())
		if err != nil {
			return err
		}

		log := logger.GetLogger("prune")
		if cfg.DryRun {
			log.Warn("Dry-run enabled, no files will be changed")
		}

		runner, err := prune.New(cfg, log)
		if err != nil {
			return err
		}

		mm := metrics.NewManager()
		noti := notification.NewDiscordSender(log, cfg.Notifications)

		var (
			total  prune.Summary
			fields []notification.Field
			failed int
		)

		for _, root := range args {
			summary, err := runner.Run(ctx, root)
			total.Add(summary)
			mm.Observe(summary, err)

			if err != nil {
				failed++
				log.WithError(err).Errorf("Failed processing %s", root)
			}
			summary.Log(log, root)

			if err != nil || summary.Merge.Linked > 0 {
				fields = append(fields, noti.BuildField(notification.ActionPrune, notification.BuildOptions{
					Root:    root,
					Summary: summary,
					Err:     err,
				}))
			}

			if errors.Is(err, context.Canceled) {
				log.Warn("Interrupted, skipping remaining roots")
				break
			}
		}

		total.DryRun = cfg.DryRun
		total.Duration = time.Since(start)
		if len(args) > 1 {
			total.Log(log, "Total")
		}

		writeMetrics(log, cfg, mm)

		if noti.CanSend() {
			description := fmt.Sprintf("%s %s across %d roots, %d links", total.SavedLabel(),
				humanize.IBytes(uint64(total.Merge.Saved)), len(args), total.Merge.Linked)

			// still report an interrupted run
			if err := noti.Send(context.WithoutCancel(ctx), "Prune", description, time.Since(start), fields, cfg.DryRun); err != nil {
				log.WithError(err).Warn("Failed sending notification")
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d roots failed", failed, len(args))
		}

		return nil
	}

	return command
}

func writeMetrics(log *logrus.Entry, cfg *config.Configuration, mm *metrics.Manager) {
	if cfg.Metrics.Textfile == "" {
		return
	}

	mm.Finish(time.Now(), cfg.DryRun)
	if err := mm.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.WithError(err).Warn("Failed writing metrics")
		return
	}

	log.Debugf("Wrote metrics to %s", cfg.Metrics.Textfile)
}
