package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Forgenetd holds every tunable of the networking/concurrency substrate:
// listener addresses, pool sizing, backpressure thresholds, and the
// encryption scheme new connections negotiate. One struct for the whole
// process, the same shape LoginServer takes for the login server.
type Forgenetd struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Concurrency
	WorkerThreadCount int `yaml:"worker_thread_count"` // ThreadPool size backing Strands
	TaskWorkerCount   int `yaml:"task_worker_count"`   // goroutines draining CPU-bound jobs
	DBWorkerCount     int `yaml:"db_worker_count"`      // goroutines draining async DB work

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Transport encryption
	Encryption    string `yaml:"encryption"`     // none, xor, blowfish, aes
	EncryptionKey string `yaml:"encryption_key"` // hex-encoded

	// Logging
	LogLevel string `yaml:"log_level"`

	// Session I/O
	SendQueueSize int    `yaml:"send_queue_size"`
	RecvBufSize   int    `yaml:"recv_buf_size"`
	WriteTimeout  string `yaml:"write_timeout"` // duration, e.g. "10s"
	ReadTimeout   string `yaml:"read_timeout"`

	// PacketPool
	PacketPoolShardCount int `yaml:"packet_pool_shard_count"`
	PacketPoolOverflow   int `yaml:"packet_pool_overflow"`

	// SessionPool
	SessionPoolMax       int `yaml:"session_pool_max"`
	SessionPoolPreAllocate int `yaml:"session_pool_preallocate"`

	// Dispatcher backpressure
	HighWaterMark int `yaml:"high_water_mark"`
	LowWaterMark  int `yaml:"low_water_mark"`

	// Room tick loop
	TickIntervalMS int     `yaml:"tick_interval_ms"`
	GridCellSize   float64 `yaml:"grid_cell_size"`

	// Rate limiting, applied per remote address at the acceptor
	RateLimit int `yaml:"rate_limit"` // packets per second
	RateBurst int `yaml:"rate_burst"`
}

// DefaultForgenetd returns a Forgenetd config with sensible defaults.
func DefaultForgenetd() Forgenetd {
	return Forgenetd{
		BindAddress:            "0.0.0.0",
		Port:                   7777,
		WorkerThreadCount:      4,
		TaskWorkerCount:        4,
		DBWorkerCount:          2,
		LogLevel:               "info",
		SendQueueSize:          256,
		RecvBufSize:            8192,
		WriteTimeout:           "10s",
		ReadTimeout:            "60s",
		PacketPoolShardCount:   0, // 0 -> runtime.GOMAXPROCS(0)
		PacketPoolOverflow:     4000,
		SessionPoolMax:         10000,
		SessionPoolPreAllocate: 100,
		HighWaterMark:          5000,
		LowWaterMark:           3000,
		TickIntervalMS:         100,
		GridCellSize:           512,
		RateLimit:              50,
		RateBurst:              100,
		Encryption:             "xor",
		EncryptionKey:          "000102030405060708090a0b0c0d0e0f",
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "forgenet",
			Password: "forgenet",
			DBName:  "forgenet",
			SSLMode: "disable",
		},
	}
}

// LoadForgenetd loads the process configuration from a YAML file, falling
// back to defaults for any field the file omits and to an all-default
// config if the file doesn't exist.
func LoadForgenetd(path string) (Forgenetd, error) {
	cfg := DefaultForgenetd()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
