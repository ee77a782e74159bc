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
	"github.com/spf13/cobra"
)

// Flag names shared by every command that sets up logging.
const (
	LogVerbosityFlag        = "verbosity"
	LogConsoleVerbosityFlag = "log.console.verbosity"
	LogJsonFlag             = "log.json"
	LogConsoleJsonFlag      = "log.console.json"
	LogDirPathFlag          = "log.dir.path"
	LogDirVerbosityFlag     = "log.dir.verbosity"
	LogDirJsonFlag          = "log.dir.json"
)

// AddFlags registers the logging flags as persistent flags of cmd.
func AddFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String(LogVerbosityFlag, "info", "Set the log level for console logs. Name (crit, error, warn, info, debug, trace) or number (0-5)")
	f.String(LogConsoleVerbosityFlag, "", "Set the log level for console logs, overrides --"+LogVerbosityFlag)
	f.Bool(LogJsonFlag, false, "Format console logs with JSON")
	f.Bool(LogConsoleJsonFlag, false, "Format console logs with JSON")
	f.String(LogDirPathFlag, "", "Path to store user and error logs to disk, defaults to <datadir>/logs")
	f.String(LogDirVerbosityFlag, "info", "Set the log verbosity for logs stored to disk")
	f.Bool(LogDirJsonFlag, false, "Format file logs with JSON")
}
