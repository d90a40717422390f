package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/samber/mo"
)

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = uint(n)
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return
	}
	*result = b
}

func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return
	}
	*result = d
}

/* Configuration */

/* Listen Configuration */

type listenConfig struct {
	Host string `json:"host"`
	Port uint   `json:"port"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
}

/* NATS Configuration */

type natsConfig struct {
	Host     string
	Port     uint
	Username string
	Password string
}

func (c *natsConfig) loadFromEnv() {
	c.Host = getEnv("NATS_HOST", "localhost")

	if portStr := getEnv("NATS_PORT", "4222"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			c.Port = uint(port)
		} else {
			c.Port = 4222
		}
	}

	c.Username = getEnv("NATS_USER", "")
	c.Password = getEnv("NATS_PASSWORD", "")
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Host: "localhost",
		Port: 4222,
	}
}

/* Redis Configuration */

type redisConfig struct {
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)

	if dbStr := getEnv("REDIS_DB", "0"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

func (r redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
	}
}

/* Content Store Configuration */

type StoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// RequestTimeout bounds a single plain HTTP request (manifest fetch,
	// URL download). Object transfers are bounded by the caller's context.
	RequestTimeout time.Duration
}

func (s *StoreConfig) loadFromEnv() {
	loadEnvString("STORE_ENDPOINT", &s.Endpoint)
	loadEnvString("STORE_REGION", &s.Region)
	loadEnvString("STORE_ACCESS_KEY", &s.AccessKey)
	loadEnvString("STORE_SECRET_KEY", &s.SecretKey)
	loadEnvString("STORE_BUCKET", &s.Bucket)
	loadEnvBool("STORE_USE_SSL", &s.UseSSL)
	loadEnvDuration("STORE_REQUEST_TIMEOUT", &s.RequestTimeout)
}

func defaultStoreConfig() StoreConfig {
	return StoreConfig{
		Endpoint:       "o3-rc2.akave.xyz",
		Region:         "us-east-1",
		Bucket:         "akave-bucket",
		UseSSL:         true,
		RequestTimeout: time.Minute,
	}
}

/* Dispatch Configuration */

type DispatchConfig struct {
	// WorkDir is the root under which per-job working areas are created.
	WorkDir string
	// Interpreter executes downloaded model payloads as a subprocess.
	Interpreter string
	// LegacyAliasName, when set, is materialized next to the staged dataset
	// for payloads that assume a fixed input file name.
	LegacyAliasName string
	// LegacyAliasRequired makes a failed alias fatal for the job.
	LegacyAliasRequired bool
	DownloadTimeout     time.Duration
	UploadTimeout       time.Duration
	ExecTimeout         time.Duration
	QueueDepth          uint
	StateTTL            time.Duration
}

func (d *DispatchConfig) loadFromEnv() {
	loadEnvString("DISPATCH_WORK_DIR", &d.WorkDir)
	loadEnvString("DISPATCH_INTERPRETER", &d.Interpreter)
	loadEnvString("DISPATCH_LEGACY_ALIAS", &d.LegacyAliasName)
	loadEnvBool("DISPATCH_LEGACY_ALIAS_REQUIRED", &d.LegacyAliasRequired)
	loadEnvDuration("DISPATCH_DOWNLOAD_TIMEOUT", &d.DownloadTimeout)
	loadEnvDuration("DISPATCH_UPLOAD_TIMEOUT", &d.UploadTimeout)
	loadEnvDuration("DISPATCH_EXEC_TIMEOUT", &d.ExecTimeout)
	loadEnvUint("DISPATCH_QUEUE_DEPTH", &d.QueueDepth)
	loadEnvDuration("DISPATCH_STATE_TTL", &d.StateTTL)
}

// LegacyAlias returns the configured alias file name, if any.
func (d DispatchConfig) LegacyAlias() mo.Option[string] {
	if d.LegacyAliasName == "" {
		return mo.None[string]()
	}
	return mo.Some(d.LegacyAliasName)
}

func defaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		WorkDir:         os.TempDir(),
		Interpreter:     "python3",
		LegacyAliasName: "dataset.csv",
		DownloadTimeout: 2 * time.Minute,
		UploadTimeout:   2 * time.Minute,
		ExecTimeout:     30 * time.Minute,
		QueueDepth:      64,
		StateTTL:        24 * time.Hour,
	}
}

type Config struct {
	Listen   listenConfig
	Nats     natsConfig
	Redis    redisConfig
	Store    StoreConfig
	Dispatch DispatchConfig
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
	c.Store.loadFromEnv()
	c.Dispatch.loadFromEnv()
}

func DefaultConfig() Config {
	return Config{
		Listen:   defaultListenConfig(),
		Nats:     defaultNatsConfig(),
		Redis:    defaultRedisConfig(),
		Store:    defaultStoreConfig(),
		Dispatch: defaultDispatchConfig(),
	}
}
