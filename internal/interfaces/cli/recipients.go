package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/database/redis"
)

func newRecipientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "Recipient directory maintenance",
	}

	flush := &cobra.Command{
		Use:   "flush-cache [phone...]",
		Short: "Drop cached recipient lookups",
		Long: `Recipients are edited directly in PostgreSQL. Lookups are cached in Redis for
redis.recipient_cache_ttl, so a deactivated recipient or a changed phone number
is only seen after that TTL. Run this after editing the recipients table to make
the change visible immediately.

The active-recipient list is always dropped. Pass the old and new phone numbers
of every edited recipient to drop their phone lookups too.`,
		Example: `  noticeflow recipients flush-cache 5531990000001 5531990000009`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, nil, func(cliCtx *CLIContext, app *App) error {
				ctx, cancel := oneShot(cmd, cliCtx)
				defer cancel()

				res, err := flushRecipientCache(ctx, app.RecipientCache, args)
				if err != nil {
					return err
				}
				return PrintResult(cmd, res)
			})
		},
	}

	cmd.AddCommand(flush)
	return cmd
}

func flushRecipientCache(ctx context.Context, cache *redis.CachedRecipients, phones []string) (flushResult, error) {
	if cache == nil {
		return flushResult{Enabled: false}, nil
	}
	if err := cache.Invalidate(ctx, phones...); err != nil {
		return flushResult{}, err
	}
	return flushResult{Enabled: true, Phones: phones}, nil
}

type flushResult struct {
	Enabled bool     `json:"cache_enabled"`
	Phones  []string `json:"phones,omitempty"`
}

func (r flushResult) String() string {
	if !r.Enabled {
		return "recipient cache is disabled (redis.enabled=false), nothing to flush"
	}
	if len(r.Phones) == 0 {
		return "flushed the active-recipient list"
	}
	return fmt.Sprintf("flushed the active-recipient list and %d phone lookups: %s", len(r.Phones), strings.Join(r.Phones, ", "))
}
