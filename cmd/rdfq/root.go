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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bemafred/rdfq/config"
	"github.com/bemafred/rdfq/engine"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rdfq",
	Short: "load RDF data and run SPARQL queries against an in-process engine",
	Long: `rdfq is a thin driver over the engine package: it builds one
in-process dataset per invocation, optionally preloads it from one or more
RDF documents, and runs a single query, update, or load operation against it.`,
	SilenceUsage: true,
}

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&cfgFile, "config", "", "config file (YAML/JSON/etc, viper-detected)")
	fs.Int64("max-download-bytes", 0, "override max_download_bytes (0 keeps the config/default value)")
	fs.Int64("max-triple-count", 0, "override max_triple_count (0 keeps the config/default value)")
	fs.Bool("enforce-content-length", true, "reject a LOAD whose declared Content-Length exceeds the download cap")
	fs.Bool("allow-updates", true, "accept SPARQL Update requests")
	fs.Duration("service-timeout", 0, "override service_timeout (0 keeps the config/default value)")
	fs.Int("service-default-retries", 0, "override service_default_retries (0 keeps the config/default value)")
	fs.Int("max-concurrent-readers", 0, "override max_concurrent_readers (0 keeps the config/default value)")

	rootCmd.AddCommand(loadCmd, queryCmd, updateCmd)
}

// newEngine builds a fresh Engine from the layered configuration bound to
// cmd's flags, with an empty dataset; callers preload it via loadSources.
func newEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("rdfq: load config: %w", err)
	}
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	return engine.New(cfg, engine.WithLogger(log)), nil
}

// loadSources issues a LOAD request against e for every source IRI,
// into graph if non-empty, or the default graph otherwise.
func loadSources(e *engine.Engine, sources []string, graph string) error {
	for _, src := range sources {
		stmt := fmt.Sprintf("LOAD <%s>", src)
		if graph != "" {
			stmt = fmt.Sprintf("LOAD <%s> INTO GRAPH <%s>", src, graph)
		}
		if err := e.Update(rootCtx, stmt); err != nil {
			return fmt.Errorf("rdfq: load %s: %w", src, err)
		}
	}
	return nil
}

// readArg returns text verbatim, or the contents of a file when text is of
// the form "@path", the curl/jq convention for "read this from a file".
func readArg(text string) (string, error) {
	if len(text) == 0 || text[0] != '@' {
		return text, nil
	}
	b, err := os.ReadFile(text[1:])
	if err != nil {
		return "", fmt.Errorf("rdfq: read %s: %w", text[1:], err)
	}
	return string(b), nil
}
