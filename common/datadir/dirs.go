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

package datadir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
)

// Dirs is the file system folder the node should use for any data storage
// requirements.
type Dirs struct {
	DataDir         string
	RelativeDataDir string // like dataDir, but without filepath.Abs() resolution
	Chaindata       string
	Tmp             string
	Snap            string
	Logs            string
}

func New(datadir string) Dirs {
	relativeDataDir := datadir
	if datadir != "" {
		absdatadir, err := filepath.Abs(datadir)
		if err != nil {
			panic(err)
		}
		datadir = absdatadir
	}

	dirs := Dirs{
		RelativeDataDir: relativeDataDir,
		DataDir:         datadir,
		Chaindata:       filepath.Join(datadir, "chaindata"),
		Tmp:             filepath.Join(datadir, "temp"),
		Snap:            filepath.Join(datadir, "snapshots"),
		Logs:            filepath.Join(datadir, "logs"),
	}
	MustExist(dirs.Chaindata, dirs.Tmp, dirs.Snap)
	return dirs
}

func MustExist(path ...string) {
	const perm = 0764 // user rwx, group rw, other r
	for _, p := range path {
		if err := os.MkdirAll(p, perm); err != nil {
			panic(err)
		}
	}
}

var (
	ErrDataDirLocked = errors.New("datadir already used by another process")

	datadirInUseErrNos = map[uint]bool{11: true, 32: true, 35: true}
)

func convertFileLockError(err error) error {
	//nolint
	if errno, ok := err.(syscall.Errno); ok && datadirInUseErrNos[uint(errno)] {
		return ErrDataDirLocked
	}
	return err
}

// TryFlock locks the data directory so two unwinds (or an unwind and a running node)
// never operate on the same store.
func TryFlock(dirs Dirs) (*flock.Flock, bool, error) {
	l := flock.New(filepath.Join(dirs.DataDir, "LOCK"))
	locked, err := l.TryLock()
	if err != nil {
		return nil, false, convertFileLockError(err)
	}
	return l, locked, nil
}

// Flock is TryFlock that treats a held lock as an error.
func Flock(dirs Dirs) (unlock func(), err error) {
	l, locked, err := TryFlock(dirs)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDataDirLocked, dirs.DataDir)
	}
	return func() { _ = l.Unlock() }, nil
}
