package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Mirai3103/remote-grader/internal/logger"
)

// Config holds the harness settings. The grading document itself is loaded
// by the backend package.
type Config struct {
	Log     logger.Config `mapstructure:"log"`
	Runner  RunnerConfig  `mapstructure:"runner"`
	Backend BackendConfig `mapstructure:"backend"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Output  string        `mapstructure:"output"` // table, csv or plain

	// Source is the settings file that was read, empty when none was found.
	Source string `mapstructure:"-"`
}

// RunnerConfig bounds how child processes are executed.
type RunnerConfig struct {
	SandboxType           string        `mapstructure:"sandboxType"`
	MaxConcurrentJobs     int           `mapstructure:"maxConcurrentJobs"` // concurrent child processes; <= 0 means number of CPUs
	SpawnRate             float64       `mapstructure:"spawnRate"`         // child processes started per second; 0 is unlimited
	KillGrace             time.Duration `mapstructure:"killGrace"`
	CompilationTimeoutSec int           `mapstructure:"compilationTimeoutSec"`
}

// BackendConfig overrides host-dependent backend defaults. Empty keeps the default.
type BackendConfig struct {
	PythonInterpreter string `mapstructure:"pythonInterpreter"`
	JavaCompiler      string `mapstructure:"javaCompiler"`
	JavaLauncher      string `mapstructure:"javaLauncher"`
}

// NATSConfig enables publishing of per-student reports when URL is set.
// RequestSubject and QueueGroup are only used when serving grade requests.
type NATSConfig struct {
	URL            string `mapstructure:"url"`
	ResultSubject  string `mapstructure:"resultSubject"`
	RequestSubject string `mapstructure:"requestSubject"`
	QueueGroup     string `mapstructure:"queueGroup"`
}

// Concurrency resolves MaxConcurrentJobs; the run is never unbounded.
func (r RunnerConfig) Concurrency() int {
	if r.MaxConcurrentJobs > 0 {
		return r.MaxConcurrentJobs
	}
	return runtime.NumCPU()
}

// CompilationTimeout converts CompilationTimeoutSec; zero means unbounded.
func (r RunnerConfig) CompilationTimeout() time.Duration {
	if r.CompilationTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(r.CompilationTimeoutSec) * time.Second
}

// flagKeys maps CLI flag names to settings keys.
var flagKeys = map[string]string{
	"workers":    "runner.maxConcurrentJobs",
	"output":     "output",
	"log-level":  "log.level",
	"log-format": "log.format",
	"nats-url":   "nats.url",
}

// LoadConfig reads settings from an optional grader.yaml, GRADER_* environment
// variables and the given flags, in increasing order of precedence.
// An explicit settingsFile must exist; otherwise the search paths are tried.
func LoadConfig(flags *pflag.FlagSet, settingsFile string, configPaths ...string) (*Config, error) {
	v := viper.New()

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
	} else {
		v.SetConfigName("grader")
		v.SetConfigType("yaml")
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/grader/")
	}

	v.SetEnvPrefix("GRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.outputPath", "stderr")
	v.SetDefault("runner.sandboxType", "direct")
	v.SetDefault("runner.maxConcurrentJobs", runtime.NumCPU())
	v.SetDefault("runner.spawnRate", 0)
	v.SetDefault("runner.killGrace", "2s")
	v.SetDefault("runner.compilationTimeoutSec", 30)
	v.SetDefault("backend.pythonInterpreter", "")
	v.SetDefault("backend.javaCompiler", "javac")
	v.SetDefault("backend.javaLauncher", "java")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.resultSubject", "grading.result")
	v.SetDefault("nats.requestSubject", "grading.request")
	v.SetDefault("nats.queueGroup", "grader-workers")
	v.SetDefault("output", "table")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if settingsFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	return &cfg, nil
}
