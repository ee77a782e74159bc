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

package freezeblocks

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/snappy"
	"github.com/spf13/afero"

	"github.com/erigontech/rewind/turbo/snapshotsync/snap"
)

// Segment file layout: a snappy stream of words, every word prefixed by its uvarint length.
// Word i holds block From+i as hash (32 bytes) followed by the RLP of the segment kind.

var ErrSegmentCorrupted = errors.New("segment corrupted")

// maxWordSize protects readers against a damaged length prefix.
const maxWordSize = 64 << 20

// Compressor writes one segment. Words go to a .tmp file which becomes visible only after Compress.
type Compressor struct {
	fs      afero.Fs
	outPath string
	tmpPath string
	f       afero.File
	w       *snappy.Writer
	words   uint64
	lenBuf  [binary.MaxVarintLen64]byte
	done    bool
}

func NewCompressor(fs afero.Fs, outPath string) (*Compressor, error) {
	tmpPath := outPath + ".tmp"
	f, err := fs.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Compressor{fs: fs, outPath: outPath, tmpPath: tmpPath, f: f, w: snappy.NewBufferedWriter(f)}, nil
}

func (c *Compressor) Count() uint64 { return c.words }

func (c *Compressor) AddWord(word []byte) error {
	n := binary.PutUvarint(c.lenBuf[:], uint64(len(word)))
	if _, err := c.w.Write(c.lenBuf[:n]); err != nil {
		return err
	}
	if _, err := c.w.Write(word); err != nil {
		return err
	}
	c.words++
	return nil
}

// Compress flushes the words and renames the .tmp file to its final name.
func (c *Compressor) Compress() error {
	if err := c.w.Close(); err != nil {
		return err
	}
	if err := c.f.Sync(); err != nil {
		return err
	}
	if err := c.f.Close(); err != nil {
		return err
	}
	c.done = true
	return c.fs.Rename(c.tmpPath, c.outPath)
}

// Close releases an unfinished compressor and removes its .tmp file.
func (c *Compressor) Close() {
	if c.done {
		return
	}
	c.done = true
	_ = c.f.Close()
	_ = c.fs.Remove(c.tmpPath)
}

// Segment is a decoded segment file.
type Segment struct {
	snap.FileInfo
	words [][]byte
}

func OpenSegment(fs afero.Fs, info snap.FileInfo) (*Segment, error) {
	f, err := fs.Open(info.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(snappy.NewReader(f))
	words := make([][]byte, 0, info.Len())
	for {
		size, err := binary.ReadUvarint(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSegmentCorrupted, info.Path, err)
		}
		if size > maxWordSize {
			return nil, fmt.Errorf("%w: %s: word of %d bytes", ErrSegmentCorrupted, info.Path, size)
		}
		word := make([]byte, size)
		if _, err := io.ReadFull(r, word); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSegmentCorrupted, info.Path, err)
		}
		words = append(words, word)
	}
	if uint64(len(words)) != info.Len() {
		return nil, fmt.Errorf("%w: %s: has %d words, expected %d", ErrSegmentCorrupted, info.Path, len(words), info.Len())
	}
	return &Segment{FileInfo: info, words: words}, nil
}

// Block returns the hash and payload stored for block n.
func (s *Segment) Block(n uint64) (common.Hash, []byte, bool) {
	if n < s.From || n >= s.To {
		return common.Hash{}, nil, false
	}
	word := s.words[n-s.From]
	if len(word) < common.HashLength {
		return common.Hash{}, nil, false
	}
	return common.BytesToHash(word[:common.HashLength]), word[common.HashLength:], true
}

func blockWord(hash common.Hash, payload []byte) []byte {
	word := make([]byte, 0, common.HashLength+len(payload))
	word = append(word, hash[:]...)
	return append(word, payload...)
}
