package domain

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
)

// OracleNode is one member of the oracle federation as published in the
// charter.
type OracleNode struct {
	PubKey    string      `json:"pubkey"`
	Address   string      `json:"address"`
	Fee       json.Number `json:"fee"`
	Messaging string      `json:"bm,omitempty"`
}

// Charter describes the federation: its members, their fees and the
// organization fee. Fees are decimal BTC amounts.
type Charter struct {
	Nodes      []OracleNode `json:"nodes"`
	OrgFee     json.Number  `json:"org_fee"`
	OrgAddress string       `json:"org_address"`
}

// MinSigs is the quorum of the federation, ceil(n/2).
func (c Charter) MinSigs() int {
	return (len(c.Nodes) + 1) / 2
}

func (c Charter) PubKeys() []string {
	pubkeys := make([]string, 0, len(c.Nodes))
	for _, node := range c.Nodes {
		pubkeys = append(pubkeys, node.PubKey)
	}
	return pubkeys
}

// OracleFees maps every fee address, the organization one included, to its
// fee in satoshis.
func (c Charter) OracleFees() (map[string]int64, error) {
	fees := make(map[string]int64, len(c.Nodes)+1)
	for _, node := range c.Nodes {
		fee, err := toSatoshis(node.Fee)
		if err != nil {
			return nil, fmt.Errorf("invalid fee for oracle %s: %w", node.PubKey, err)
		}
		fees[node.Address] += fee
	}
	if c.OrgAddress != "" {
		fee, err := toSatoshis(c.OrgFee)
		if err != nil {
			return nil, fmt.Errorf("invalid org fee: %w", err)
		}
		fees[c.OrgAddress] += fee
	}
	return fees, nil
}

// FeesSatoshi is the sum of all the fees listed in the charter.
func (c Charter) FeesSatoshi() (int64, error) {
	fees, err := c.OracleFees()
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, fee := range fees {
		sum += fee
	}
	return sum, nil
}

func toSatoshis(amount json.Number) (int64, error) {
	if amount == "" {
		return 0, nil
	}
	btc, err := strconv.ParseFloat(amount.String(), 64)
	if err != nil {
		return 0, err
	}
	sats, err := btcutil.NewAmount(btc)
	if err != nil {
		return 0, err
	}
	return int64(sats), nil
}
