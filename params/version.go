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

package params

import (
	"fmt"

	"github.com/erigontech/rewind/kv"
)

// GitCommit is injected through the build flags
var GitCommit string

const (
	VersionMajor = 1
	VersionMinor = 0
	VersionMicro = 0

	VersionModifier = "dev"
)

const (
	VersionKeyCreated  = "RewindVersionCreated"
	VersionKeyFinished = "RewindVersionFinished"
)

// Version holds the textual version string.
var Version = fmt.Sprintf("%d.%d.%d", VersionMajor, VersionMinor, VersionMicro)

// VersionWithMeta holds the textual version string including the metadata.
var VersionWithMeta = func() string {
	v := Version
	if VersionModifier != "" {
		v += "-" + VersionModifier
	}
	return v
}()

func VersionWithCommit(gitCommit string) string {
	vsn := VersionWithMeta
	if len(gitCommit) >= 8 {
		vsn += "-" + gitCommit[:8]
	}
	return vsn
}

// SetToolVersion records the version under versionKey unless one is already recorded.
func SetToolVersion(tx kv.RwTx, versionKey string) error {
	hasVersion, err := tx.Has(kv.DatabaseInfo, []byte(versionKey))
	if err != nil {
		return err
	}
	if hasVersion {
		return nil
	}
	return tx.Put(kv.DatabaseInfo, []byte(versionKey), []byte(VersionWithMeta))
}

// SetToolVersionFinished overwrites the version of the last command that finished writing.
func SetToolVersionFinished(tx kv.RwTx) error {
	return tx.Put(kv.DatabaseInfo, []byte(VersionKeyFinished), []byte(VersionWithMeta))
}
