/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/sap/besu-devnet-manager/pkg/identity"
	"github.com/sap/besu-devnet-manager/pkg/network"
)

// MixHash is the fixed QBFT block identifier (the ASCII tail of
// "istanbul practical byzantine fault tolerance").
const MixHash = "0x63746963616c2062797a616e74696e65206661756c7420746f6c6572616e6365"

// DefaultBalance is the balance (in wei) prefunded to each validator
// account; 10^27, that is one billion ether.
const DefaultBalance = "1000000000000000000000000000"

// Genesis mirrors Besu's genesis JSON document. Field order matters for the
// serialized output and follows the usual Besu layout.
type Genesis struct {
	Config     Config             `json:"config"`
	Nonce      string             `json:"nonce"`
	Timestamp  string             `json:"timestamp"`
	GasLimit   string             `json:"gasLimit"`
	Difficulty string             `json:"difficulty"`
	MixHash    string             `json:"mixHash"`
	Coinbase   string             `json:"coinbase"`
	ExtraData  string             `json:"extraData"`
	Alloc      map[string]Account `json:"alloc"`
}

// Config is the chain configuration section.
type Config struct {
	ChainID     int64      `json:"chainId"`
	LondonBlock int64      `json:"londonBlock"`
	ZeroBaseFee bool       `json:"zeroBaseFee"`
	QBFT        QBFTConfig `json:"qbft"`
}

// QBFTConfig carries the consensus parameters; keys are all-lowercase, as
// Besu expects them.
type QBFTConfig struct {
	BlockPeriodSeconds      int `json:"blockperiodseconds"`
	EmptyBlockPeriodSeconds int `json:"emptyblockperiodseconds,omitempty"`
	EpochLength             int `json:"epochlength"`
	RequestTimeoutSeconds   int `json:"requesttimeoutseconds"`
}

// Account is one genesis alloc entry.
type Account struct {
	Balance string `json:"balance"`
}

// Build assembles the genesis document for the given network; the validator
// addresses (in node index order) form the initial QBFT validator set and
// are prefunded with DefaultBalance, in addition to the network's configured
// funded accounts.
func Build(net *network.Network, validators []common.Address) (*Genesis, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("at least one validator address is required")
	}
	extraData, err := ExtraData(validators)
	if err != nil {
		return nil, err
	}
	alloc := make(map[string]Account)
	for _, validator := range validators {
		alloc[allocKey(validator)] = Account{Balance: DefaultBalance}
	}
	for address, balance := range net.FundedAccounts {
		alloc[allocKey(common.HexToAddress(address))] = Account{Balance: balance}
	}
	return &Genesis{
		Config: Config{
			ChainID:     net.ChainID,
			LondonBlock: 0,
			ZeroBaseFee: true,
			QBFT: QBFTConfig{
				BlockPeriodSeconds:      net.BlockPeriodSeconds,
				EmptyBlockPeriodSeconds: net.EmptyBlockPeriodSeconds,
				EpochLength:             net.EpochLength,
				RequestTimeoutSeconds:   net.RequestTimeoutSeconds,
			},
		},
		Nonce:      "0x0",
		Timestamp:  "0x0",
		GasLimit:   hexutil.EncodeUint64(net.GasLimit),
		Difficulty: "0x1",
		MixHash:    MixHash,
		Coinbase:   "0x" + strings.Repeat("0", 40),
		ExtraData:  hexutil.Encode(extraData),
		Alloc:      alloc,
	}, nil
}

// ForNetwork builds the genesis from the network's validator identities,
// and checks that the extra data decodes back to the same validator set.
func ForNetwork(net *network.Network, identities identity.Set) (*Genesis, error) {
	validators, err := ValidatorAddresses(net, identities)
	if err != nil {
		return nil, err
	}
	g, err := Build(net, validators)
	if err != nil {
		return nil, err
	}
	decoded, err := g.Validators()
	if err != nil {
		return nil, err
	}
	if !slices.Equal(decoded, validators) {
		return nil, fmt.Errorf("genesis extra data does not decode back to the validator set")
	}
	return g, nil
}

// ValidatorAddresses returns the addresses of the network's validator
// nodes, in node index order.
func ValidatorAddresses(net *network.Network, identities identity.Set) ([]common.Address, error) {
	var validators []common.Address
	for _, node := range net.Nodes() {
		if !node.IsValidator() {
			continue
		}
		id := identities.Find(node.Name)
		if id == nil {
			return nil, fmt.Errorf("no identity for node %s", node.Name)
		}
		validators = append(validators, id.Address)
	}
	return validators, nil
}

// ExtraData encodes the QBFT extra data for the given validator set:
// an RLP list of a 32 byte zero vanity, the validator addresses, empty
// votes, round zero and empty seals.
func ExtraData(validators []common.Address) ([]byte, error) {
	vanity := make([]byte, 32)
	raw, err := rlp.EncodeToBytes([]any{vanity, validators, []any{}, uint(0), []any{}})
	if err != nil {
		return nil, errors.Wrap(err, "error encoding extra data")
	}
	return raw, nil
}

type extraData struct {
	Vanity     []byte
	Validators []common.Address
	Rest       []rlp.RawValue `rlp:"tail"`
}

// DecodeExtraData extracts the validator set from QBFT extra data.
func DecodeExtraData(data []byte) ([]common.Address, error) {
	var decoded extraData
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		return nil, errors.Wrap(err, "error decoding extra data")
	}
	return decoded.Validators, nil
}

// Validators decodes the validator set back from the genesis extra data.
func (g *Genesis) Validators() ([]common.Address, error) {
	raw, err := hexutil.Decode(g.ExtraData)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding extra data")
	}
	return DecodeExtraData(raw)
}

// Marshal renders the genesis as indented JSON.
func (g *Genesis) Marshal() ([]byte, error) {
	raw, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling genesis")
	}
	return append(raw, '\n'), nil
}

// WriteFile writes the genesis to the given path.
func (g *Genesis) WriteFile(path string) error {
	raw, err := g.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, "error writing genesis %s", path)
	}
	return nil
}

// Read parses a genesis document, such as the one stored in the network's
// genesis ConfigMap.
func Read(raw []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, errors.Wrap(err, "error parsing genesis")
	}
	return g, nil
}

func allocKey(address common.Address) string {
	return strings.ToLower(address.Hex()[2:])
}
