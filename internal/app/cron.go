package app

import (
	"context"

	"github.com/tomtev/page.fun/internal/config"
	"github.com/tomtev/page.fun/internal/modules/content/page"
	pkgcron "github.com/tomtev/page.fun/internal/pkg/cron"
)

const jobReconcileWalletIndex = "reconcile_wallet_index"

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, reconciler *page.Reconciler, cfg *config.AppConfig) {
	sched.Register(pkgcron.Job{
		Name:        jobReconcileWalletIndex,
		Description: "Rebuild wallet page indexes from stored pages",
		Interval:    cfg.Reconcile.Interval,
		Fn: func(ctx context.Context) error {
			_, err := reconciler.Run(ctx)
			return err
		},
	})
}
