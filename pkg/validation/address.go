package validation

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fbsobreira/gotron-sdk/pkg/address"
)

// Payout networks accepted for USDT withdrawals.
const (
	NetworkTRC20 = "TRC20"
	NetworkERC20 = "ERC20"
	NetworkBEP20 = "BEP20"
)

// ValidateAddress checks that addr is a well-formed address on network
func ValidateAddress(network, addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch strings.ToUpper(network) {
	case NetworkTRC20:
		return validateTronAddress(addr)
	case NetworkERC20, NetworkBEP20:
		// BEP20 shares the EVM address format
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s address %s", network, addr)
		}
		if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
			return fmt.Errorf("invalid %s address %s: missing 0x prefix", network, addr)
		}
		return nil
	default:
		return fmt.Errorf("unsupported network %q", network)
	}
}

func validateTronAddress(addr string) error {
	parsed, err := address.Base58ToAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid TRC20 address %s: %w", addr, err)
	}
	if len(parsed) != address.AddressLength || parsed[0] != address.TronBytePrefix {
		return fmt.Errorf("invalid TRC20 address %s: not a TRON mainnet address", addr)
	}
	return nil
}

// NormalizeAddress returns the canonical form: EIP-55 checksum case for EVM
// networks, unchanged Base58 for TRON
func NormalizeAddress(network, addr string) string {
	switch strings.ToUpper(network) {
	case NetworkERC20, NetworkBEP20:
		return common.HexToAddress(addr).Hex()
	default:
		return strings.TrimSpace(addr)
	}
}

// ValidateAndNormalizeAddress validates an address and returns its normalized form
func ValidateAndNormalizeAddress(network, addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if err := ValidateAddress(network, addr); err != nil {
		return "", err
	}
	return NormalizeAddress(network, addr), nil
}
