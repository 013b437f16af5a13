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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoOverridesReturnsDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("RDFQ_ALLOW_UPDATES", "false")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.False(t, cfg.AllowUpdates)
	assert.Equal(t, Defaults().MaxDownloadBytes, cfg.MaxDownloadBytes, "unrelated defaults must be untouched")
}

func TestLoadConfigFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rdfq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_triple_count: 42\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 42, cfg.MaxTripleCount)
}

func TestLoadUnsetFlagDoesNotZeroTheDefault(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int64("max-download-bytes", 0, "")

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, Defaults().MaxDownloadBytes, cfg.MaxDownloadBytes,
		"an unset flag with a zero default must not outrank the package default")
}

func TestLoadChangedFlagOverridesEverything(t *testing.T) {
	t.Setenv("RDFQ_MAX_CONCURRENT_READERS", "99")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("max-concurrent-readers", 0, "")
	require.NoError(t, fs.Set("max-concurrent-readers", "3"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxConcurrentReaders, "an explicitly set flag beats both env and default")
}

func TestLoadServiceTimeoutParsesDuration(t *testing.T) {
	t.Setenv("RDFQ_SERVICE_TIMEOUT", "30s")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.ServiceTimeout)
}
