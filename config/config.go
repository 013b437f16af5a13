// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the options the engine recognizes (LOAD limits,
// update gating, federation timeouts, reader concurrency) from a config
// file, environment variables, and flags, layered with
// github.com/spf13/viper the way cmd/eve layers RabbitMQ/CouchDB
// settings: flags override environment, which overrides the file, which
// overrides the package defaults below.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every option spec.md §6 "Configuration recognized by the
// engine" enumerates, plus MaxConcurrentReaders (needed to make the
// concurrency model in spec.md §5 concrete).
type Config struct {
	// MaxDownloadBytes caps a LOAD response body; 0 means unlimited.
	MaxDownloadBytes int64
	// MaxTripleCount caps the triples a single LOAD may insert; 0 means
	// unlimited.
	MaxTripleCount int64
	// EnforceContentLength rejects a LOAD whose declared Content-Length
	// already exceeds MaxDownloadBytes, before reading the body.
	EnforceContentLength bool
	// AllowUpdates gates whether the engine accepts SPARQL Update
	// requests at all.
	AllowUpdates bool
	// ServiceTimeout is loaded from "service_timeout". It is not passed to
	// the federation client, whose backoff elapsed time is fixed at 5s by
	// federation.New.
	ServiceTimeout time.Duration
	// ServiceDefaultRetries is loaded from "service_default_retries". It is
	// not passed to the federation client, which retries a SERVICE call at
	// most 3 times (fixed by federation.New).
	ServiceDefaultRetries int
	// MaxConcurrentReaders bounds how many SERVICE calls may run at once;
	// it does not limit the number of concurrent queries.
	MaxConcurrentReaders int
}

// Defaults returns the engine's out-of-the-box configuration.
func Defaults() Config {
	return Config{
		MaxDownloadBytes:      100 << 20, // 100 MiB
		MaxTripleCount:        1_000_000,
		EnforceContentLength:  true,
		AllowUpdates:          true,
		ServiceTimeout:        10 * time.Second,
		ServiceDefaultRetries: 3,
		MaxConcurrentReaders:  8,
	}
}

// Load builds a Config by layering, in increasing precedence: package
// defaults, an optional config file (YAML/JSON/TOML/etc, whatever format
// viper detects from its extension), environment variables prefixed
// RDFQ_, and flags already bound into fs (if non-nil).
func Load(configFile string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("max_download_bytes", d.MaxDownloadBytes)
	v.SetDefault("max_triple_count", d.MaxTripleCount)
	v.SetDefault("enforce_content_length", d.EnforceContentLength)
	v.SetDefault("allow_updates", d.AllowUpdates)
	v.SetDefault("service_timeout", d.ServiceTimeout)
	v.SetDefault("service_default_retries", d.ServiceDefaultRetries)
	v.SetDefault("max_concurrent_readers", d.MaxConcurrentReaders)

	v.SetEnvPrefix("RDFQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}
	if fs != nil {
		// Bind only the flags the caller actually set: pflag's own
		// zero-value default would otherwise outrank the package
		// defaults registered above in viper's precedence order (a
		// well-known BindPFlag gotcha), silently zeroing every option
		// a user didn't pass on the command line.
		for key, flagName := range map[string]string{
			"max_download_bytes":     "max-download-bytes",
			"max_triple_count":       "max-triple-count",
			"enforce_content_length": "enforce-content-length",
			"allow_updates":          "allow-updates",
			"service_timeout":        "service-timeout",
			"service_default_retries": "service-default-retries",
			"max_concurrent_readers": "max-concurrent-readers",
		} {
			flag := fs.Lookup(flagName)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, err
			}
		}
	}

	return Config{
		MaxDownloadBytes:      v.GetInt64("max_download_bytes"),
		MaxTripleCount:        v.GetInt64("max_triple_count"),
		EnforceContentLength:  v.GetBool("enforce_content_length"),
		AllowUpdates:          v.GetBool("allow_updates"),
		ServiceTimeout:        v.GetDuration("service_timeout"),
		ServiceDefaultRetries: v.GetInt("service_default_retries"),
		MaxConcurrentReaders:  v.GetInt("max_concurrent_readers"),
	}, nil
}
