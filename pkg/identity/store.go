/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	nodesDir        = "nodes"
	keyFile         = "key"
	publicKeyFile   = "key.pub"
	addressFile     = "address"
	keyFileMode     = 0o600
	defaultFileMode = 0o644
	dirMode         = 0o755
)

// Write stores the identities below dir, one directory per node:
// nodes/<name>/key (private key hex, mode 0600), nodes/<name>/key.pub,
// nodes/<name>/address.
func (s Set) Write(dir string) error {
	for _, identity := range s {
		nodeDir := filepath.Join(dir, nodesDir, identity.Name)
		if err := os.MkdirAll(nodeDir, dirMode); err != nil {
			return errors.Wrapf(err, "error creating directory for node %s", identity.Name)
		}
		files := []struct {
			name string
			data string
			mode os.FileMode
		}{
			{keyFile, identity.PrivateKeyHex(), keyFileMode},
			{publicKeyFile, identity.EnodeID(), defaultFileMode},
			{addressFile, identity.Address.Hex(), defaultFileMode},
		}
		for _, file := range files {
			if err := os.WriteFile(filepath.Join(nodeDir, file.name), []byte(file.data), file.mode); err != nil {
				return errors.Wrapf(err, "error writing %s for node %s", file.name, identity.Name)
			}
		}
	}
	return nil
}

// Load reads the identities of the given nodes from dir (as written by
// Write), and checks that the stored address matches the private key.
func Load(dir string, names []string) (Set, error) {
	identities := make(Set, 0, len(names))
	for _, name := range names {
		nodeDir := filepath.Join(dir, nodesDir, name)
		rawKey, err := os.ReadFile(filepath.Join(nodeDir, keyFile))
		if err != nil {
			return nil, errors.Wrapf(err, "error reading key of node %s", name)
		}
		privateKey, err := crypto.HexToECDSA(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(rawKey)), "0x")))
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing key of node %s", name)
		}
		identity := New(name, privateKey)
		rawAddress, err := os.ReadFile(filepath.Join(nodeDir, addressFile))
		if err != nil {
			return nil, errors.Wrapf(err, "error reading address of node %s", name)
		}
		address := strings.TrimSpace(string(rawAddress))
		if !common.IsHexAddress(address) || common.HexToAddress(address) != identity.Address {
			return nil, errors.Errorf("stored address %s of node %s does not match its key (expected %s)", address, name, identity.Address.Hex())
		}
		identities = append(identities, identity)
	}
	return identities, nil
}
