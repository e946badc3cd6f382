package main

import (
	"fmt"
	"strings"

	"github.com/RxDataLab/go-edgar-bulk"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	datasetFacts       = "facts"
	datasetSubmissions = "submissions"
)

// config is the resolved CLI configuration: flags > EDGAR_* env > .env > defaults
type config struct {
	Email    string
	Rate     int
	Retries  int
	LogLevel string
	Dataset  string
	Archive  string
	TempDir  string
	KeepAll  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rate", edgar.MaxRequestsPerSecond)
	v.SetDefault("retries", edgar.DefaultMaxRetries)
	v.SetDefault("log_level", "info")
	v.SetDefault("dataset", datasetFacts)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"email":     "email",
		"rate":      "rate",
		"retries":   "retries",
		"log_level": "log-level",
		"dataset":   "dataset",
		"archive":   "archive",
		"temp_dir":  "temp-dir",
		"keep_all":  "keep-all",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}

func loadConfig(flags *pflag.FlagSet) (*config, error) {
	v := viper.New()
	v.SetEnvPrefix("EDGAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// SEC_EMAIL is shared with the other go-edgar tools
	if err := v.BindEnv("email", "EDGAR_EMAIL", edgar.SecEmailEnvVar); err != nil {
		return nil, fmt.Errorf("failed to bind email env: %w", err)
	}
	setDefaults(v)
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	cfg := &config{
		Email:    v.GetString("email"),
		Rate:     v.GetInt("rate"),
		Retries:  v.GetInt("retries"),
		LogLevel: v.GetString("log_level"),
		Dataset:  v.GetString("dataset"),
		Archive:  v.GetString("archive"),
		TempDir:  v.GetString("temp_dir"),
		KeepAll:  v.GetBool("keep_all"),
	}
	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.Email == "" {
		return fmt.Errorf("SEC email required: set %s or use --email", edgar.SecEmailEnvVar)
	}
	if err := edgar.ValidateEmail(c.Email); err != nil {
		return err
	}
	switch c.Dataset {
	case datasetFacts, datasetSubmissions:
	default:
		return fmt.Errorf("unknown dataset %q: expected %s or %s", c.Dataset, datasetFacts, datasetSubmissions)
	}
	return nil
}

func (c *config) archiveOptions() []edgar.ArchiveOption {
	var opts []edgar.ArchiveOption
	if c.Archive != "" {
		opts = append(opts, edgar.WithExistingArchive(c.Archive))
	}
	if c.TempDir != "" {
		opts = append(opts, edgar.WithTempDir(c.TempDir))
	}
	if c.KeepAll {
		opts = append(opts, edgar.WithDuplicatePolicy(edgar.KeepAll))
	}
	return opts
}
