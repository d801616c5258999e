package utils

import (
	"bytes"
	"sort"

	"github.com/hummus-exchange/farm/internal/types"
)

// SortAddresses orders addrs by their raw bytes, the order every snapshot and
// listing uses.
func SortAddresses(addrs []types.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
