package solana

import (
	"fmt"
	"math/big"
	"strconv"

	solana "github.com/gagliardetto/solana-go"
)

// ValidateAddress checks that address is a base58 public key
func ValidateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid solana address %q: %w", address, err)
	}
	return nil
}

// ValidateSignature checks that reference is a base58 transaction signature
func ValidateSignature(reference string) error {
	if _, err := solana.SignatureFromBase58(reference); err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}
	return nil
}

// FormatAmount converts base units to a decimal string (100, 6 -> "0.0001")
func FormatAmount(amount uint64, decimals int) string {
	if decimals <= 0 {
		return strconv.FormatUint(amount, 10)
	}
	r := new(big.Rat).SetFrac(
		new(big.Int).SetUint64(amount),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil),
	)
	s := r.FloatString(decimals)
	// Trim trailing zeros but keep at least one decimal digit
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s += "0"
	}
	return s
}
