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

package snap_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/rewind/turbo/snapshotsync/snap"
)

func TestParseFileName(t *testing.T) {
	require := require.New(t)

	name := snap.SegmentFileName(1_000, 1_500, snap.Bodies)
	require.Equal("v1-000001000-000001500-bodies.seg", name)

	f, err := snap.ParseFileName("dir", name)
	require.NoError(err)
	require.Equal(uint64(1_000), f.From)
	require.Equal(uint64(1_500), f.To)
	require.Equal(snap.Bodies, f.T)
	require.Equal(".seg", f.Ext)
	require.Equal(filepath.Join("dir", name), f.Path)

	for _, bad := range []string{
		"v2-000001000-000001500-bodies.seg",
		"v1-000001500-000001000-bodies.seg",
		"v1-000001000-000001500-transactions.seg",
		"v1-abc-000001500-bodies.seg",
		"headers.seg",
	} {
		_, err = snap.ParseFileName("dir", bad)
		require.ErrorIs(err, snap.ErrInvalidFileName, bad)
	}
}

func TestParseDirSkipsForeignFiles(t *testing.T) {
	require := require.New(t)
	fs := afero.NewMemMapFs()
	dir := "/snapshots"

	require.NoError(afero.WriteFile(fs, filepath.Join(dir, snap.SegmentFileName(10, 20, snap.Headers)), []byte{1}, 0644))
	require.NoError(afero.WriteFile(fs, filepath.Join(dir, snap.SegmentFileName(0, 10, snap.Headers)), []byte{1}, 0644))
	require.NoError(afero.WriteFile(fs, filepath.Join(dir, snap.SegmentFileName(0, 10, snap.Bodies)), []byte{1}, 0644))
	require.NoError(afero.WriteFile(fs, filepath.Join(dir, "README.md"), []byte{1}, 0644))
	require.NoError(afero.WriteFile(fs, filepath.Join(dir, snap.SegmentFileName(20, 30, snap.Headers)+".tmp"), []byte{1}, 0644))

	segments, err := snap.Segments(fs, dir)
	require.NoError(err)
	require.Len(segments, 3)
	require.Equal(snap.Bodies, segments[0].T)
	require.Equal(uint64(0), segments[1].From)
	require.Equal(uint64(10), segments[2].From)

	tmp, err := snap.TmpFiles(fs, dir)
	require.NoError(err)
	require.Len(tmp, 1)

	missing, err := snap.Segments(fs, "/nowhere")
	require.NoError(err)
	require.Empty(missing)
}
