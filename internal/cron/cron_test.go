package cron

import (
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"k8s.io/client-go/kubernetes"

	"github.com/mailvault/mailvault/config"
	cron_config "github.com/mailvault/mailvault/internal/cron/config"
	"github.com/mailvault/mailvault/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{},
		Logger:    &logger.Config{LogLevel: "info"},
		FetchConfig: &config.FetchConfig{
			SyncConflictPolicy: "prefer_local",
		},
		CronConfig: &cron_config.Config{
			CronScheduleHealthSweep: "0 0 2 * * *",
			CronScheduleBackupPush:  "0 0 * * * *",
			HealthSweepEnabled:      true,
			BackupPushEnabled:       true,
		},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	assert.Len(t, cm.jobIDs, 2)
	assert.Contains(t, cm.jobIDs, "health_sweep")
	assert.Contains(t, cm.jobIDs, "backup_push")
}

func TestCronManager_RegisterJobs_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.CronConfig.HealthSweepEnabled = false
	cm := NewCronManager(cfg, getLogger(), nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())
	cm.registerJobs(c)

	assert.Len(t, cm.jobIDs, 1)
	assert.NotContains(t, cm.jobIDs, "health_sweep")
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &mockKubernetesInterface{}, nil, nil)

	c := cronv3.New()
	c.Start()
	cm.cron = c

	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
}

func TestCronManager_Stop_Idempotent(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, nil, nil)

	c := cronv3.New()
	c.Start()
	cm.cron = c

	// leader loss and shutdown may both call Stop
	cm.Stop()
	assert.NotPanics(t, func() { cm.Stop() })
}
