// Package chain provides contract interaction for the feed publisher.
package chain

import (
	"math/big"
	"os"
)

// =============================================================================
// Contract Addresses (configurable)
// =============================================================================

// ContractAddresses holds the deployed contract addresses.
type ContractAddresses struct {
	NeoFeeds string `json:"neofeeds"`
}

// LoadFromEnv loads contract addresses from environment variables.
func (c *ContractAddresses) LoadFromEnv() {
	if h := os.Getenv("CONTRACT_NEOFEEDS_HASH"); h != "" {
		c.NeoFeeds = h
	}
}

// ContractAddressesFromEnv creates ContractAddresses from environment variables.
func ContractAddressesFromEnv() ContractAddresses {
	c := ContractAddresses{}
	c.LoadFromEnv()
	return c
}

// =============================================================================
// NeoFeeds Types
// =============================================================================

// PriceRecord is the latest anchored round for a symbol as stored by the
// NeoFeeds contract. Integers come back as big.Int from the VM stack.
type PriceRecord struct {
	RoundID         *big.Int
	Price           *big.Int
	Timestamp       uint64 // unix seconds
	AttestationHash []byte
	SourceSetID     *big.Int
}

// ContractFeedConfig represents on-chain price feed configuration from the smart contract.
// Note: This is different from config.FeedConfig which is for service configuration.
type ContractFeedConfig struct {
	FeedID      string
	Description string
	Decimals    *big.Int
	Active      bool
	CreatedAt   uint64
}
