package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"srei-dedup"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (listing / fingerprint / match store)
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"srei"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Kafka Consumer (listing change events from the scraper pipeline)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"listing-changes"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"srei-dedup-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (duplicate group events for notifications)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"duplicate-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Fingerprinting. Bucket granularities absorb cross-portal rounding noise.
	AreaBucketSize     float64 `env:"AREA_BUCKET_SIZE" env-default:"5"`
	PriceBucketPercent float64 `env:"PRICE_BUCKET_PERCENT" env-default:"5"`

	// Candidate search tolerance bands. Recall-oriented: generous enough to
	// survive unit conversion and rounding differences between portals.
	AreaTolerancePercent  float64 `env:"AREA_TOLERANCE_PERCENT" env-default:"10"`
	PriceTolerancePercent float64 `env:"PRICE_TOLERANCE_PERCENT" env-default:"15"`
	MaxCandidates         int     `env:"MAX_CANDIDATES" env-default:"100"`

	// Scoring thresholds. Pairs scoring between RejectThreshold and
	// ConfirmThreshold are escalated to the AI tie-breaker.
	ConfirmThreshold float64 `env:"CONFIRM_THRESHOLD" env-default:"0.85"`
	RejectThreshold  float64 `env:"REJECT_THRESHOLD" env-default:"0.4"`

	// AI tie-breaker
	AIEnabled        bool          `env:"AI_TIEBREAK_ENABLED" env-default:"true"`
	AIAPIKey         string        `env:"AI_API_KEY" env-default:""`
	AIBaseURL        string        `env:"AI_BASE_URL" env-default:""`
	AIModel          string        `env:"AI_MODEL" env-default:"gpt-4o-mini"`
	AITimeout        time.Duration `env:"AI_TIMEOUT" env-default:"15s"`
	AIMaxConcurrent  int           `env:"AI_MAX_CONCURRENT" env-default:"4"`
	AIRequestsPerSec float64       `env:"AI_REQUESTS_PER_SEC" env-default:"3"`

	// Batch run
	RunBatchSize            int           `env:"RUN_BATCH_SIZE" env-default:"500"`
	FingerprintWorkerCount  int           `env:"FINGERPRINT_WORKER_COUNT" env-default:"8"`
	ScoreWorkerCount        int           `env:"SCORE_WORKER_COUNT" env-default:"4"`
	RunInterval             time.Duration `env:"DEDUP_RUN_INTERVAL" env-default:"0"`
	StorageRetryMaxAttempts int           `env:"STORAGE_RETRY_MAX_ATTEMPTS" env-default:"3"`

	// Normalization. Marketing boilerplate stripped before hashing so portal
	// furniture does not pollute signatures.
	BoilerplateKeywords []string `env:"BOILERPLATE_KEYWORDS" env-default:"exkluzivne,novinka,top ponuka,znizena cena,super cena,odporucame,rezervovane,akcia"`
}
