package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12300"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILVAULT_POSTGRES_HOST,required"`
	Port            string `env:"MAILVAULT_POSTGRES_PORT,required"`
	User            string `env:"MAILVAULT_POSTGRES_USER,required"`
	DBName          string `env:"MAILVAULT_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILVAULT_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILVAULT_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILVAULT_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILVAULT_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILVAULT_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILVAULT_POSTGRES_SSL_MODE"`
}

type OAuthConfig struct {
	TokenURL       string `env:"OAUTH_TOKEN_URL" envDefault:"https://login.microsoftonline.com/consumers/oauth2/v2.0/token"`
	Scope          string `env:"OAUTH_SCOPE" envDefault:"https://outlook.office.com/IMAP.AccessAsUser.All offline_access"`
	TimeoutSeconds int    `env:"OAUTH_TIMEOUT_SECONDS" envDefault:"30"`
}

type IMAPConfig struct {
	Server         string `env:"IMAP_SERVER" envDefault:"outlook.live.com"`
	Port           int    `env:"IMAP_PORT" envDefault:"993"`
	TimeoutSeconds int    `env:"IMAP_TIMEOUT_SECONDS" envDefault:"30"`
}

type FetchConfig struct {
	MaxGlobalConnections     int    `env:"MAX_GLOBAL_CONNECTIONS" envDefault:"10"`
	MaxConnectionsPerAccount int    `env:"MAX_CONNECTIONS_PER_ACCOUNT" envDefault:"2"`
	ConnectionIdleSeconds    int    `env:"CONNECTION_IDLE_SECONDS" envDefault:"120"`
	CacheTTLSeconds          int    `env:"CACHE_TTL_SECONDS" envDefault:"60"`
	DefaultPageSize          int    `env:"DEFAULT_PAGE_SIZE" envDefault:"20"`
	SyncConflictPolicy       string `env:"SYNC_CONFLICT_POLICY" envDefault:"prefer_local"`
}
