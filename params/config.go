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
	"embed"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/erigontech/rewind/chain"
	"github.com/erigontech/rewind/params/networkname"
)

//go:embed chainspecs
var chainspecs embed.FS

func readChainSpec(filename string) *chain.Config {
	f, err := chainspecs.Open(filename)
	if err != nil {
		panic(fmt.Sprintf("Could not open chainspec for %s: %v", filename, err))
	}
	defer f.Close()

	decoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(f)
	spec := &chain.Config{}
	if err = decoder.Decode(&spec); err != nil {
		panic(fmt.Sprintf("Could not parse chainspec for %s: %v", filename, err))
	}
	return spec
}

var (
	// DevChainConfig is the chain config of local development and test networks.
	DevChainConfig = readChainSpec("chainspecs/dev.json")
)

func ChainConfigByChainName(name string) *chain.Config {
	switch name {
	case networkname.Dev:
		return DevChainConfig
	default:
		return nil
	}
}
