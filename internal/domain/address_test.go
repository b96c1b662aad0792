package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEVMAddressChecksums(t *testing.T) {
	// Checksummed forms from the EIP-55 reference vectors.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range vectors {
		got, err := NormalizeAddress(ChainEVM, strings.ToLower(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)

		// Correctly checksummed input round-trips.
		got, err = NormalizeAddress(ChainEVM, want)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNormalizeEVMAddressRejectsBadChecksum(t *testing.T) {
	// Flip the case of one letter in a valid checksummed address.
	_, err := NormalizeAddress(ChainEVM, "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Error(t, err)
}

func TestNormalizeEVMAddressRejectsMalformed(t *testing.T) {
	cases := []string{
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", // no 0x
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA",  // short
		"0xzzzzb6053F3E94C9b9A09f33669435E7Ef1BeAed", // not hex
		"",
	}
	for _, addr := range cases {
		_, err := NormalizeAddress(ChainEVM, addr)
		assert.Error(t, err, "address %q", addr)
	}
}

func TestNormalizeDAGAddress(t *testing.T) {
	got, err := NormalizeAddress(ChainDAG, "DAG1qzp4xholder77example000address123")
	require.NoError(t, err)
	assert.Equal(t, "dag1qzp4xholder77example000address123", got)
}

func TestNormalizeDAGAddressRejectsMalformed(t *testing.T) {
	cases := []string{
		"qzp4xholder77example000address123",        // no prefix
		"dag1short",                                // too short
		"dag1qzp4x_holder77example000address123",   // invalid character
		"dag1" + strings.Repeat("a", 80),           // too long
	}
	for _, addr := range cases {
		_, err := NormalizeAddress(ChainDAG, addr)
		assert.Error(t, err, "address %q", addr)
	}
}

func TestNormalizeAddressUnknownChain(t *testing.T) {
	_, err := NormalizeAddress(Chain("SOLANA"), "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	assert.Error(t, err)
}
