/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Identity is the key material of one node: a secp256k1 private key and
// the account address derived from it. The public key doubles as the
// node's enode id.
type Identity struct {
	// Name of the node the identity belongs to.
	Name string
	// The node's secp256k1 private key.
	PrivateKey *ecdsa.PrivateKey
	// The account address derived from the public key.
	Address common.Address
}

// New derives an identity from an existing private key.
func New(name string, privateKey *ecdsa.PrivateKey) *Identity {
	return &Identity{
		Name:       name,
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// PrivateKeyHex returns the private key as 64 hex characters (no 0x prefix),
// the format Besu expects in its node key file.
func (i *Identity) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(i.PrivateKey))
}

// EnodeID returns the uncompressed public key as 128 hex characters
// (without the 04 prefix byte).
func (i *Identity) EnodeID() string {
	return hex.EncodeToString(crypto.FromECDSAPub(&i.PrivateKey.PublicKey)[1:])
}

// EnodeURL renders the enode URL of the node at the given endpoint.
func (i *Identity) EnodeURL(host string, port int) string {
	return fmt.Sprintf("enode://%s@%s:%d", i.EnodeID(), host, port)
}

// Set is an ordered list of identities (node order of the network).
type Set []*Identity

// Generate creates fresh identities for the given node names.
func Generate(names []string) (Set, error) {
	identities := make(Set, 0, len(names))
	for _, name := range names {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, errors.Wrapf(err, "error generating key for node %s", name)
		}
		identities = append(identities, New(name, privateKey))
	}
	return identities, nil
}

// Find returns the identity of the named node, or nil.
func (s Set) Find(name string) *Identity {
	for _, identity := range s {
		if identity.Name == name {
			return identity
		}
	}
	return nil
}

// Addresses returns the addresses of all identities, in set order.
func (s Set) Addresses() []common.Address {
	addresses := make([]common.Address, len(s))
	for i, identity := range s {
		addresses[i] = identity.Address
	}
	return addresses
}
