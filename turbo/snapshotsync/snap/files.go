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

package snap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

type Type string

const (
	Headers  Type = "headers"
	Bodies   Type = "bodies"
	Receipts Type = "receipts"
)

func (t Type) String() string { return string(t) }

var AllSnapshotTypes = []Type{Headers, Bodies, Receipts}

var (
	ErrInvalidFileName = fmt.Errorf("invalid compressed file name")
)

// FileName is v1-<from>-<to>-<type>, blocks [from, to)
func FileName(from, to uint64, fileType string) string {
	return fmt.Sprintf("v1-%09d-%09d-%s", from, to, fileType)
}
func SegmentFileName(from, to uint64, t Type) string { return FileName(from, to, string(t)) + ".seg" }

func ParseFileName(dir, fileName string) (res FileInfo, err error) {
	ext := filepath.Ext(fileName)
	onlyName := fileName[:len(fileName)-len(ext)]
	parts := strings.Split(onlyName, "-")
	if len(parts) != 4 {
		return res, fmt.Errorf("expected format: v1-000001500-000002000-bodies.seg got: %s. %w", fileName, ErrInvalidFileName)
	}
	if parts[0] != "v1" {
		return res, fmt.Errorf("version: %s. %w", parts[0], ErrInvalidFileName)
	}
	from, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return res, fmt.Errorf("parsing from: %s. %w: %s", fileName, ErrInvalidFileName, err)
	}
	to, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return res, fmt.Errorf("parsing to: %s. %w: %s", fileName, ErrInvalidFileName, err)
	}
	if from >= to {
		return res, fmt.Errorf("from >= to: %s. %w", fileName, ErrInvalidFileName)
	}
	switch Type(parts[3]) {
	case Headers, Bodies, Receipts:
	default:
		return res, fmt.Errorf("unexpected snapshot suffix: %s,%w", parts[3], ErrInvalidFileName)
	}
	return FileInfo{From: from, To: to, Path: filepath.Join(dir, fileName), T: Type(parts[3]), Ext: ext}, nil
}

type FileInfo struct {
	From, To  uint64
	Path, Ext string
	T         Type
}

func (f FileInfo) Len() uint64 { return f.To - f.From }

func Segments(fs afero.Fs, dir string) (res []FileInfo, err error) {
	files, err := ParseDir(fs, dir)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Ext != ".seg" { // filter out only compressed files
			continue
		}
		res = append(res, f)
	}
	return res, nil
}

func TmpFiles(fs afero.Fs, dir string) (res []string, err error) {
	files, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() || len(f.Name()) < 3 {
			continue
		}
		if filepath.Ext(f.Name()) != ".tmp" {
			continue
		}
		res = append(res, filepath.Join(dir, f.Name()))
	}
	return res, nil
}

// ParseDir returns the segment files of dir ordered by type and range.
// Files with unknown names are ignored.
func ParseDir(fs afero.Fs, dir string) (res []FileInfo, err error) {
	files, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() || f.Size() == 0 || len(f.Name()) < 3 {
			continue
		}
		meta, err := ParseFileName(dir, f.Name())
		if err != nil {
			if errors.Is(err, ErrInvalidFileName) {
				continue
			}
			return nil, err
		}
		res = append(res, meta)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].T != res[j].T {
			return res[i].T < res[j].T
		}
		if res[i].From != res[j].From {
			return res[i].From < res[j].From
		}
		return res[i].To < res[j].To
	})
	return res, nil
}
