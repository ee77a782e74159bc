// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestConfigFromFlags(t *testing.T) {
	require := require.New(t)
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	AddFlags(cmd)
	cmd.PersistentFlags().String("datadir", "", "")
	require.NoError(cmd.ParseFlags([]string{"--verbosity=4", "--log.dir.verbosity=error", "--log.console.json", "--datadir=/data"}))

	cfg := ConfigFromFlags(cmd.Flags())
	require.Equal(log.LvlDebug, cfg.ConsoleLevel)
	require.True(cfg.ConsoleJson)
	require.Equal(log.LvlError, cfg.DirLevel)
	require.Equal("/data/logs", cfg.DirPath)

	require.NoError(cmd.ParseFlags([]string{"--log.console.verbosity=warn", "--log.dir.path=/tmp/x"}))
	cfg = ConfigFromFlags(cmd.Flags())
	require.Equal(log.LvlWarn, cfg.ConsoleLevel)
	require.Equal("/tmp/x", cfg.DirPath)
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--verbosity=loud", "--log.dir.verbosity=loud"}))
	cfg := ConfigFromFlags(cmd.Flags())
	require.Equal(t, log.LvlInfo, cfg.ConsoleLevel)
	require.Equal(t, log.LvlInfo, cfg.DirLevel)
}

func TestConsoleLevelFilter(t *testing.T) {
	require := require.New(t)
	var out bytes.Buffer
	logger := log.New()
	require.NoError(InitSeparatedLogging(logger, afero.NewMemMapFs(), &out, "test", Config{ConsoleLevel: log.LvlWarn, ConsoleJson: true}))

	logger.Info("hidden")
	logger.Warn("shown", "block", 5)
	require.NotContains(out.String(), "hidden")
	require.Contains(out.String(), `"msg":"shown"`)
	require.Contains(out.String(), `"block":5`)
}

func TestFileLogging(t *testing.T) {
	require := require.New(t)
	dir := filepath.Join(t.TempDir(), "logs")
	var out bytes.Buffer
	logger := log.New()
	require.NoError(InitSeparatedLogging(logger, afero.NewOsFs(), &out, "rewind", Config{ConsoleLevel: log.LvlInfo, DirPath: dir, DirLevel: log.LvlWarn}))
	logger.Warn("to file")

	data, err := os.ReadFile(filepath.Join(dir, "rewind.log"))
	require.NoError(err)
	require.Contains(string(data), "to file")
	require.NotContains(string(data), "logging to file system")
	require.Contains(out.String(), "logging to file system")
}
