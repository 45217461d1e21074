package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/autobrr/prunetree/pkg/logger"
	"github.com/autobrr/prunetree/pkg/notification"
	"github.com/autobrr/prunetree/pkg/recovery"
)

func RecoverCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "recover DIR...",
		Short: "Resolve relink temporaries left by an interrupted run",
		Long: `This command finds relink temporaries (files ending in .prunetree-xxxxxxxx) and either
restores them over their missing original, removes them when the original was already
relinked, or keeps them when neither is safe.`,
		Example: `  prunetree recover /data
  prunetree recover --dry-run /data`,
		Args: cobra.MinimumNArgs(1),
	}

	command.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		start := time.Now()

		cfg, err := initCore(cmd.Flags())
		if err != nil {
			return err
		}

		log := logger.GetLogger("recover")
		r := recovery.New(cfg, log)
		noti := notification.NewDiscordSender(log, cfg.Notifications)

		var (
			fields []notification.Field
			failed int
			found  int
		)

		for _, root := range args {
			res, err := r.Recover(ctx, root)
			found += len(res.Findings)

			if err != nil {
				failed++
				log.WithError(err).Errorf("Failed recovering %s", root)
			} else {
				log.Infof("%s: %d restored, %d removed, %d kept, %d failed", root,
					res.Restored, res.Removed, res.Kept, res.Failed)
			}

			if err != nil || len(res.Findings) > 0 {
				fields = append(fields, noti.BuildField(notification.ActionRecover, notification.BuildOptions{
					Root:     root,
					Recovery: res,
					Err:      err,
				}))
			}

			if errors.Is(err, context.Canceled) {
				break
			}
		}

		if noti.CanSend() {
			description := fmt.Sprintf("Resolved %d relink temporaries across %d roots", found, len(args))
			if err := noti.Send(context.WithoutCancel(ctx), "Recover", description, time.Since(start), fields, cfg.DryRun); err != nil {
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
