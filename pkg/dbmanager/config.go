package dbmanager

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/beandb/pkg/storage"
)

// Config enumerates the process-wide knobs of spec §6: procedure pool
// sizing, lock sharding, retry/timeout budgets, session FIFO bounds, and
// checkpoint/backup cadence.
type Config struct {
	DBThreadCount       int `yaml:"dbThreadCount"`
	MaxLockPerProcedure int `yaml:"maxLockPerProcedure"`
	LockPoolSize        int `yaml:"lockPoolSize"`
	MaxProcedureRedo    int `yaml:"maxProceduerRedo"`
	MaxSessionProcedure int `yaml:"maxSessionProcedure"`
	MaxBatchProcedure   int `yaml:"maxBatchProceduer"`

	ProcedureTimeoutMS         int `yaml:"procedureTimeout"`
	ProcedureDeadlockTimeoutMS int `yaml:"procedureDeadlockTimeout"`
	DeadlockCheckIntervalMS    int `yaml:"deadlockCheckInterval"`

	CommitModCount      int    `yaml:"dbCommitModCount"`
	CommitResaveCount   int    `yaml:"dbCommitResaveCount"`
	CommitPeriodMS      int    `yaml:"dbCommitPeriod"`
	BackupPeriodMS      int    `yaml:"dbBackupPeriod"`
	FullBackupPeriodMS  int    `yaml:"levelDBFullBackupPeriod"`
	BackupBaseUnixMS    int64  `yaml:"dbBackupBase"`
	BackupPath          string `yaml:"backupPath"`
	DBName              string `yaml:"dbName"`

	StorageOptions StorageOptions `yaml:"storage"`
}

// StorageOptions mirrors the embedded-store tuning options of §6.
type StorageOptions struct {
	WriteBufferSize int  `yaml:"writeBufferSize"`
	MaxOpenFiles    int  `yaml:"maxOpenFiles"`
	CacheSize       int  `yaml:"cacheSize"`
	FileSize        int  `yaml:"fileSize"`
	UseSnappy       bool `yaml:"useSnappy"`
	ReuseLogs       bool `yaml:"reuseLogs"`
}

// DefaultConfig returns the conservative defaults a standalone process
// boots with absent an explicit config file.
func DefaultConfig() Config {
	return Config{
		DBThreadCount:       8,
		MaxLockPerProcedure: 4,
		LockPoolSize:        1024,
		MaxProcedureRedo:    10,
		MaxSessionProcedure: 1000,
		MaxBatchProcedure:   32,

		ProcedureTimeoutMS:         5000,
		ProcedureDeadlockTimeoutMS: 15000,
		DeadlockCheckIntervalMS:    1000,

		CommitModCount:     10000,
		CommitResaveCount:  100,
		CommitPeriodMS:     5000,
		BackupPeriodMS:     3600000,
		FullBackupPeriodMS: 86400000,
		BackupBaseUnixMS:   0,
		BackupPath:         "./backups",
		DBName:             "beandb",

		StorageOptions: StorageOptions{
			WriteBufferSize: 4 << 20,
			MaxOpenFiles:    256,
			CacheSize:       64 << 20,
			FileSize:        64 << 20,
			UseSnappy:       true,
			ReuseLogs:       true,
		},
	}
}

// LoadConfig reads a YAML config file over DefaultConfig, following the
// same read-then-unmarshal shape as the CLI's resource-apply loader.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("dbmanager: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("dbmanager: parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) procedureTimeout() time.Duration {
	return time.Duration(c.ProcedureTimeoutMS) * time.Millisecond
}

func (c Config) deadlockCheckInterval() time.Duration {
	return time.Duration(c.DeadlockCheckIntervalMS) * time.Millisecond
}

func (c Config) commitPeriod() time.Duration {
	return time.Duration(c.CommitPeriodMS) * time.Millisecond
}

func (c Config) backupPeriod() time.Duration {
	return time.Duration(c.BackupPeriodMS) * time.Millisecond
}

func (c Config) fullBackupPeriod() time.Duration {
	return time.Duration(c.FullBackupPeriodMS) * time.Millisecond
}

func (c Config) backupBase() time.Time {
	return time.UnixMilli(c.BackupBaseUnixMS)
}

// ToStorageOptions converts the enumerated storage knobs of §6 into the
// shape pkg/storage.Open expects.
func (o StorageOptions) ToStorageOptions() storage.Options {
	return storage.Options{
		WriteBufferBytes:   o.WriteBufferSize,
		CacheBytes:         o.CacheSize,
		FileSizeBytes:      o.FileSize,
		CompressionEnabled: o.UseSnappy,
		ReuseLogs:          o.ReuseLogs,
	}
}
