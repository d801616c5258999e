/*

Well-known Hummus LP tokens on Metis Andromeda (chain 1088). The API uses the
symbols to label pools; the daemon registers these pools on first start.

If an LP token is missing here its pool is still served, just without a label.

*/

package config

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/hummus-exchange/farm/internal/types"
)

// LPToken is one stable pool's share token.
type LPToken struct {
	Symbol  string
	Address types.Address
}

var LPTokens = []LPToken{
	{Symbol: "HLPUSDC", Address: common.HexToAddress("0x9E3F3Be65fEc3731197AFF816489eB1Eb6E6b830")},
	{Symbol: "HLPUSDT", Address: common.HexToAddress("0x9F51f0D7F500343E969D28010C7Eb0Db1bCaAEf9")},
	{Symbol: "HLPDAI", Address: common.HexToAddress("0xd5A0760D55ad46B6A1C46D28725e4C117312a7aD")},
}

// LPLabels maps LP token addresses to their symbols.
func LPLabels() map[types.Address]string {
	out := make(map[types.Address]string, len(LPTokens))
	for _, lp := range LPTokens {
		out[lp.Address] = lp.Symbol
	}
	return out
}
