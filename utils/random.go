package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GenerateCode returns an uppercase hex string of 2n characters, used for
// tournament callback correlation tags.
func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// PickRandom returns n elements drawn uniformly without replacement from
// pool. The pool itself is not modified.
func PickRandom(pool []string, n int) ([]string, error) {
	if n > len(pool) {
		return nil, fmt.Errorf("pick %d from pool of %d", n, len(pool))
	}
	remaining := append([]string(nil), pool...)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(remaining))))
		if err != nil {
			return nil, err
		}
		j := int(idx.Int64())
		out = append(out, remaining[j])
		remaining = append(remaining[:j], remaining[j+1:]...)
	}
	return out, nil
}
