package main

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// configDefaults holds values loaded from an optional YAML config file and
// from RTMPD_-prefixed environment variables, layered in that order. They
// become the flag package's defaults in parseFlags, so the final precedence
// is: command-line flag > environment variable > config file > built-in
// default.
type configDefaults struct {
	listenAddr string
	logLevel   string
	recordDir  string
	chunkSize  uint
}

const defaultConfigPath = "rtmpd.yaml"

// loadConfigDefaults reads path (if it exists) and the process environment
// into a koanf instance and returns whatever overrides they supply. A
// missing config file is not an error -- most deployments configure purely
// through flags or environment variables.
func loadConfigDefaults(path string) (configDefaults, error) {
	d := configDefaults{
		listenAddr: ":1935",
		logLevel:   "info",
		recordDir:  "recordings",
		chunkSize:  4096,
	}

	k := koanf.New(".")

	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return d, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{Prefix: "RTMPD_", TransformFunc: func(key, value string) (string, any) {
		return strings.ToLower(strings.TrimPrefix(key, "RTMPD_")), value
	}}), nil); err != nil {
		return d, err
	}

	d.listenAddr = k.String("listen", d.listenAddr)
	d.logLevel = k.String("log_level", d.logLevel)
	d.recordDir = k.String("record_dir", d.recordDir)
	d.chunkSize = uint(k.Int64("chunk_size", int64(d.chunkSize)))
	if d.chunkSize == 0 {
		d.chunkSize = 4096
	}
	return d, nil
}

// effectiveConfigYAML re-renders cfg as YAML for startup diagnostics: koanf
// only round-trips through its own internal map representation, so this is
// a direct marshal of the flag-resolved values actually in effect,
// independent of whatever the optional config file contained.
func effectiveConfigYAML(cfg *cliConfig) (string, error) {
	snapshot := struct {
		ListenAddr          string        `yaml:"listen"`
		LogLevel            string        `yaml:"log_level"`
		RecordAll           bool          `yaml:"record_all"`
		RecordDir           string        `yaml:"record_dir"`
		RecordCompress      bool          `yaml:"record_compress"`
		ChunkSize           uint          `yaml:"chunk_size"`
		RelayDestinations   []string      `yaml:"relay_destinations,omitempty"`
		RecordRetention     time.Duration `yaml:"record_retention"`
		RecordRetentionCron string        `yaml:"record_retention_cron"`
	}{
		ListenAddr:          cfg.listenAddr,
		LogLevel:            cfg.logLevel,
		RecordAll:           cfg.recordAll,
		RecordDir:           cfg.recordDir,
		RecordCompress:      cfg.recordCompress,
		ChunkSize:           cfg.chunkSize,
		RelayDestinations:   cfg.relayDestinations,
		RecordRetention:     cfg.recordRetention,
		RecordRetentionCron: cfg.recordRetentionCron,
	}
	b, err := yamlv3.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
