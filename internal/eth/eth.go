// Package eth converts listing prices between wei minor units and ETH.
package eth

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

var weiPerEth = new(big.Int).SetUint64(params.Ether)

// ParseWei parses an integer wei string as returned by the marketplace feed.
func ParseWei(s string) (*big.Int, error) {
	wei, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return wei, nil
}

// WeiToEth converts a wei amount into an exact ETH value. Exact arithmetic
// keeps price bounds inclusive down to a single wei.
func WeiToEth(wei *big.Int) *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).Set(wei), weiPerEth)
}

// ParseEth parses a decimal ETH string ("0.05") into an exact value.
func ParseEth(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid ETH amount %q", s)
	}
	return r, nil
}

// ReadableEth formats a wei amount as a short human-readable ETH value for
// notification bodies, trimming trailing zeros (1.5, 0.001, 12). Amounts that
// would round away at four decimals fall back to full wei resolution so a
// nonzero price never displays as "0".
func ReadableEth(wei *big.Int) string {
	r := WeiToEth(wei)
	if r.Sign() == 0 {
		return "0"
	}
	s := trimZeros(r.FloatString(4))
	if s == "0" {
		s = trimZeros(r.FloatString(18))
	}
	return s
}

func trimZeros(s string) string {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
