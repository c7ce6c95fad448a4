package cron

import (
	"context"
	"os"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/mailvault/mailvault/config"
	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/tracing"
)

const (
	// GroupMailvault serializes jobs that touch the account registry
	GroupMailvault = "mailvault"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMailvault: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	health   interfaces.HealthService
	sync     interfaces.SyncService
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, health interfaces.HealthService, syncService interfaces.SyncService) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		k8s:    k8s,
		stopCh: make(chan struct{}),
		jobIDs: make(map[string]cronv3.EntryID),
		health: health,
		sync:   syncService,
	}
}

// Start initializes and starts the cron manager with leader election.
// If k8s is nil, it will start in local mode without leader election.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailvault-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager. Safe to call more than once;
// leader loss and shutdown may both trigger it.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	cronConfig := cm.cfg.CronConfig

	if cronConfig.HealthSweepEnabled && cronConfig.CronScheduleHealthSweep != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleHealthSweep, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailvault].Lock()
			defer jobLocks.locks[GroupMailvault].Unlock()
			cm.runHealthSweep()
		})
		if err != nil {
			cm.log.Fatalf("Could not add health sweep cron job: %v", err)
		}
		cm.jobIDs["health_sweep"] = id
		cm.log.Infof("Registered health sweep job with schedule: %s", cronConfig.CronScheduleHealthSweep)
	}

	if cronConfig.BackupPushEnabled && cronConfig.CronScheduleBackupPush != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleBackupPush, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailvault].Lock()
			defer jobLocks.locks[GroupMailvault].Unlock()
			cm.runBackupPush()
		})
		if err != nil {
			cm.log.Fatalf("Could not add backup push cron job: %v", err)
		}
		cm.jobIDs["backup_push"] = id
		cm.log.Infof("Registered backup push job with schedule: %s", cronConfig.CronScheduleBackupPush)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) runHealthSweep() {
	cm.log.Info("Running credential health sweep")

	ctx := context.Background()
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runHealthSweep")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	summary, err := cm.health.RunOnce(ctx)
	if err != nil {
		if err == er.ErrSweepInProgress {
			cm.log.Info("Health sweep already running, skipping this trigger")
			return
		}
		tracing.TraceErr(span, err)
		cm.log.Errorf("Health sweep failed: %v", err)
		return
	}

	cm.log.Infof("Health sweep %s completed: %d/%d healthy, %d newly expired",
		summary.RunID, summary.Success, summary.Total, summary.NewlyExpired)
}

func (cm *CronManager) runBackupPush() {
	cm.log.Info("Running backup push")

	ctx := context.Background()
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runBackupPush")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	policy := enum.GetConflictPolicy(cm.cfg.FetchConfig.SyncConflictPolicy)
	outcome, err := cm.sync.Push(ctx, policy)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Backup push failed: %v", err)
		return
	}

	cm.log.Infof("Backup push completed: %d added, %d updated, %d marked deleted, %d skipped",
		outcome.Added, outcome.Updated, outcome.MarkedDeleted, outcome.Skipped)
}
