package entity

import "time"

const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// PostFailurePolicy decides what happens to the remaining batches once one fails to post.
type PostFailurePolicy string

const (
	PolicyAbort    PostFailurePolicy = "abort"
	PolicyContinue PostFailurePolicy = "continue"
)

type Config struct {
	Identifier string `yaml:"identifier"`
	Password   string `yaml:"password"`
	Service    string `yaml:"service"`
	FeedURL    string `yaml:"feedUrl"`

	StoreBackend string `yaml:"storeBackend"`
	RedisAddr    string `yaml:"redisAddr"`
	SQLitePath   string `yaml:"sqlitePath"`
	StateKey     string `yaml:"stateKey"`

	// CombineWindow is expressed in the feed's timestamp unit.
	CombineWindow     float64           `yaml:"combineWindow"`
	OnPostFailure     PostFailurePolicy `yaml:"onPostFailure"`
	StrictPersistence bool              `yaml:"strictPersistence"`

	SyncInterval time.Duration `yaml:"syncInterval"`
	Port         string        `yaml:"port"`
	LogLevel     string        `yaml:"logLevel"`
}
