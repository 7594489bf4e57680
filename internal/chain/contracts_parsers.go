package chain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
)

// =============================================================================
// Stack Item Parsers
// =============================================================================

// ParseArray extracts an array of StackItems from a parent StackItem.
func ParseArray(item StackItem) ([]StackItem, error) {
	if item.Type != "Array" && item.Type != "Struct" {
		return nil, fmt.Errorf("expected Array or Struct, got %s", item.Type)
	}

	var items []StackItem
	if err := json.Unmarshal(item.Value, &items); err != nil {
		return nil, fmt.Errorf("unmarshal array: %w", err)
	}
	return items, nil
}

// ParseString parses a string from a StackItem.
// Alias for ParseStringFromItem for consistency.
func ParseString(item StackItem) (string, error) {
	return ParseStringFromItem(item)
}

func ParseHash160(item StackItem) (string, error) {
	if item.Type == "ByteString" || item.Type == "Buffer" {
		var value string
		if err := json.Unmarshal(item.Value, &value); err != nil {
			return "", err
		}
		bytes, err := hex.DecodeString(value)
		if err != nil {
			return "", err
		}
		// Reverse for big-endian display
		reversed := make([]byte, len(bytes))
		for i, b := range bytes {
			reversed[len(bytes)-1-i] = b
		}
		return "0x" + hex.EncodeToString(reversed), nil
	}
	return "", fmt.Errorf("unexpected type: %s", item.Type)
}

func ParseByteArray(item StackItem) ([]byte, error) {
	if item.Type == "ByteString" || item.Type == "Buffer" {
		var value string
		if err := json.Unmarshal(item.Value, &value); err != nil {
			return nil, err
		}
		return hex.DecodeString(value)
	}
	if item.Type == "Null" {
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected type: %s", item.Type)
}

func ParseInteger(item StackItem) (*big.Int, error) {
	if item.Type == "Integer" {
		var value string
		if err := json.Unmarshal(item.Value, &value); err != nil {
			return nil, err
		}
		n := new(big.Int)
		n.SetString(value, 10)
		return n, nil
	}
	return nil, fmt.Errorf("unexpected type: %s", item.Type)
}

func ParseBoolean(item StackItem) (bool, error) {
	if item.Type == "Boolean" {
		var value bool
		if err := json.Unmarshal(item.Value, &value); err != nil {
			return false, err
		}
		return value, nil
	}
	return false, fmt.Errorf("unexpected type: %s", item.Type)
}

func ParseStringFromItem(item StackItem) (string, error) {
	if item.Type == "ByteString" || item.Type == "Buffer" {
		var value string
		if err := json.Unmarshal(item.Value, &value); err != nil {
			return "", err
		}
		bytes, err := hex.DecodeString(value)
		if err != nil {
			return "", err
		}
		return string(bytes), nil
	}
	if item.Type == "Null" {
		return "", nil
	}
	return "", fmt.Errorf("unexpected type for string: %s", item.Type)
}

// ParsePriceRecord parses the 5-field round record returned by the NeoFeeds
// contract: [roundId, price, timestamp, attestationHash, sourceSetId].
func ParsePriceRecord(item StackItem) (*PriceRecord, error) {
	if item.Type == "Null" {
		return nil, nil
	}
	if item.Type != "Array" && item.Type != "Struct" {
		return nil, fmt.Errorf("expected Array or Struct, got %s", item.Type)
	}

	var items []StackItem
	if err := json.Unmarshal(item.Value, &items); err != nil {
		return nil, fmt.Errorf("unmarshal array: %w", err)
	}

	if len(items) < 5 {
		return nil, fmt.Errorf("expected at least 5 items, got %d", len(items))
	}

	roundID, err := ParseInteger(items[0])
	if err != nil {
		return nil, fmt.Errorf("parse roundId: %w", err)
	}
	price, err := ParseInteger(items[1])
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	timestamp, err := ParseInteger(items[2])
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	// attestation can be null on legacy rounds
	attestation, _ := ParseByteArray(items[3])
	sourceSetID, err := ParseInteger(items[4])
	if err != nil {
		return nil, fmt.Errorf("parse sourceSetId: %w", err)
	}

	return &PriceRecord{
		RoundID:         roundID,
		Price:           price,
		Timestamp:       timestamp.Uint64(),
		AttestationHash: attestation,
		SourceSetID:     sourceSetID,
	}, nil
}

// ParseFeedConfig parses on-chain feed metadata.
func ParseFeedConfig(item StackItem) (*ContractFeedConfig, error) {
	if item.Type != "Array" && item.Type != "Struct" {
		return nil, fmt.Errorf("expected Array or Struct, got %s", item.Type)
	}

	var items []StackItem
	if err := json.Unmarshal(item.Value, &items); err != nil {
		return nil, fmt.Errorf("unmarshal array: %w", err)
	}

	if len(items) < 5 {
		return nil, fmt.Errorf("expected at least 5 items, got %d", len(items))
	}

	feedID, err := ParseStringFromItem(items[0])
	if err != nil {
		return nil, fmt.Errorf("parse feedID: %w", err)
	}
	description, err := ParseStringFromItem(items[1])
	if err != nil {
		return nil, fmt.Errorf("parse description: %w", err)
	}
	decimals, err := ParseInteger(items[2])
	if err != nil {
		return nil, fmt.Errorf("parse decimals: %w", err)
	}
	active, err := ParseBoolean(items[3])
	if err != nil {
		return nil, fmt.Errorf("parse active: %w", err)
	}
	createdAt, err := ParseInteger(items[4])
	if err != nil {
		return nil, fmt.Errorf("parse createdAt: %w", err)
	}

	return &ContractFeedConfig{
		FeedID:      feedID,
		Description: description,
		Decimals:    decimals,
		Active:      active,
		CreatedAt:   createdAt.Uint64(),
	}, nil
}
