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
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is what SetupLoggerCmd reads from the command line.
type Config struct {
	ConsoleLevel log.Lvl
	ConsoleJson  bool
	DirPath      string
	DirLevel     log.Lvl
	DirJson      bool
}

// SetupLoggerCmd configures the root logger from the flags registered by AddFlags and returns it.
// File logs go to <log.dir.path>/<filePrefix>.log, or to <datadir>/logs when no dir is given.
func SetupLoggerCmd(filePrefix string, cmd *cobra.Command) log.Logger {
	cfg := ConfigFromFlags(cmd.Flags())
	logger := log.Root()
	if err := InitSeparatedLogging(logger, afero.NewOsFs(), os.Stderr, filePrefix, cfg); err != nil {
		logger.Warn("failed to create log dir, console logging only", "err", err)
	}
	return logger
}

func ConfigFromFlags(flags *pflag.FlagSet) Config {
	getBool := func(name string) bool {
		v, err := flags.GetBool(name)
		return err == nil && v
	}
	getString := func(name string) string {
		if f := flags.Lookup(name); f != nil {
			return f.Value.String()
		}
		return ""
	}

	cfg := Config{
		ConsoleJson: getBool(LogJsonFlag) || getBool(LogConsoleJsonFlag),
		DirJson:     getBool(LogDirJsonFlag),
		DirPath:     getString(LogDirPathFlag),
	}
	var err error
	if cfg.ConsoleLevel, err = tryGetLogLevel(getString(LogConsoleVerbosityFlag)); err != nil {
		// try verbosity flag
		if cfg.ConsoleLevel, err = tryGetLogLevel(getString(LogVerbosityFlag)); err != nil {
			cfg.ConsoleLevel = log.LvlInfo
		}
	}
	if cfg.DirLevel, err = tryGetLogLevel(getString(LogDirVerbosityFlag)); err != nil {
		cfg.DirLevel = log.LvlInfo
	}
	if cfg.DirPath == "" {
		if datadir := getString("datadir"); datadir != "" {
			cfg.DirPath = filepath.Join(datadir, "logs")
		}
	}
	return cfg
}

// InitSeparatedLogging sets a console handler on logger and, when cfg.DirPath is set, a rotated
// file handler with its own level next to it.
func InitSeparatedLogging(logger log.Logger, fs afero.Fs, console io.Writer, filePrefix string, cfg Config) error {
	consoleFormat := log.TerminalFormatNoColor()
	if cfg.ConsoleJson {
		consoleFormat = log.JsonFormat()
	}
	logger.SetHandler(log.LvlFilterHandler(cfg.ConsoleLevel, log.StreamHandler(console, consoleFormat)))

	if cfg.DirPath == "" {
		return nil
	}
	if err := fs.MkdirAll(cfg.DirPath, 0764); err != nil {
		return err
	}

	dirFormat := log.TerminalFormatNoColor()
	if cfg.DirJson {
		dirFormat = log.JsonFormat()
	}
	fileLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.DirPath, filePrefix+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, //days
	}
	mux := log.MultiHandler(logger.GetHandler(), log.LvlFilterHandler(cfg.DirLevel, log.StreamHandler(fileLog, dirFormat)))
	logger.SetHandler(mux)
	logger.Info("logging to file system", "log dir", cfg.DirPath, "file prefix", filePrefix, "log level", cfg.DirLevel, "json", cfg.DirJson)
	return nil
}

func tryGetLogLevel(s string) (log.Lvl, error) {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return log.Lvl(l), nil
	}
	return lvl, nil
}
