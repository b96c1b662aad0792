package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const dagAddressPrefix = "dag1"

// NormalizeAddress validates an address for the given chain and returns its
// canonical form: EIP-55 mixed-case for EVM, lowercase for DAG.
func NormalizeAddress(chain Chain, address string) (string, error) {
	switch chain {
	case ChainEVM:
		return normalizeEVMAddress(address)
	case ChainDAG:
		return normalizeDAGAddress(address)
	default:
		return "", fmt.Errorf("unknown chain %q", chain)
	}
}

func normalizeEVMAddress(address string) (string, error) {
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", fmt.Errorf("evm address must start with 0x")
	}
	body := address[2:]
	if len(body) != 40 {
		return "", fmt.Errorf("evm address must be 20 bytes hex")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("evm address is not hex: %w", err)
	}
	checksummed := checksumEVMAddress(body)
	// Mixed-case input must carry a correct EIP-55 checksum; all-lower or
	// all-upper input is accepted and normalized.
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && body != checksummed {
		return "", fmt.Errorf("evm address checksum mismatch")
	}
	return "0x" + checksummed, nil
}

// checksumEVMAddress applies EIP-55: each hex letter is uppercased when the
// corresponding nibble of keccak256(lowercase address) is >= 8.
func checksumEVMAddress(body string) string {
	lower := strings.ToLower(body)
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hash.Sum(nil)

	out := []byte(lower)
	for i := range out {
		if out[i] < 'a' || out[i] > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = out[i] - 'a' + 'A'
		}
	}
	return string(out)
}

func normalizeDAGAddress(address string) (string, error) {
	lower := strings.ToLower(address)
	if !strings.HasPrefix(lower, dagAddressPrefix) {
		return "", fmt.Errorf("dag address must start with %s", dagAddressPrefix)
	}
	if len(lower) < 30 || len(lower) > 70 {
		return "", fmt.Errorf("dag address has invalid length %d", len(lower))
	}
	for _, r := range lower[len(dagAddressPrefix):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("dag address contains invalid character %q", r)
		}
	}
	return lower, nil
}
