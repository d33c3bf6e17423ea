package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tronAddr = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	evmAddr  = "0x52908400098527886E0F7030069857D2E4169EE7"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		network string
		addr    string
		wantErr bool
	}{
		{"tron", NetworkTRC20, tronAddr, false},
		{"tron lowercase network", "trc20", tronAddr, false},
		{"tron bad checksum", NetworkTRC20, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u", true},
		{"tron given evm address", NetworkTRC20, evmAddr, true},
		{"erc20", NetworkERC20, evmAddr, false},
		{"bep20", NetworkBEP20, evmAddr, false},
		{"erc20 missing prefix", NetworkERC20, evmAddr[2:], true},
		{"erc20 short", NetworkERC20, "0x1234", true},
		{"erc20 given tron address", NetworkERC20, tronAddr, true},
		{"empty", NetworkERC20, "", true},
		{"unknown network", "SOL", evmAddr, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.network, tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAndNormalizeAddress(t *testing.T) {
	got, err := ValidateAndNormalizeAddress(NetworkERC20, "0x52908400098527886e0f7030069857d2e4169ee7")
	require.NoError(t, err)
	assert.Equal(t, evmAddr, got)

	got, err = ValidateAndNormalizeAddress(NetworkTRC20, " "+tronAddr+" ")
	require.NoError(t, err)
	assert.Equal(t, tronAddr, got)
}
