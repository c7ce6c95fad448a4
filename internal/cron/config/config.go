package cron_config

type Config struct {
	// Credential health sweep, daily at 2am
	CronScheduleHealthSweep string `env:"CRON_SCHEDULE_HEALTH_SWEEP" envDefault:"0 0 2 * * *"`
	// Backup push, hourly
	CronScheduleBackupPush string `env:"CRON_SCHEDULE_BACKUP_PUSH" envDefault:"0 0 * * * *"`
	HealthSweepEnabled     bool   `env:"HEALTH_SWEEP_ENABLED" envDefault:"true"`
	BackupPushEnabled      bool   `env:"BACKUP_PUSH_ENABLED" envDefault:"true"`
}
