package chainquery

import (
	"github.com/Charli3-Official/charli3-push-oracle-sdk/internal/core/tx"
)

// SlotConfig converts between absolute slots and POSIX milliseconds for
// one network era. Valid from the Shelley boundary onward; the engine
// never reasons about earlier history.
type SlotConfig struct {
	ZeroTime   int64  // ms timestamp of ZeroSlot
	ZeroSlot   uint64 // first slot of the era
	SlotLength int64  // ms per slot
}

// SlotConfigFor returns the era parameters for a known network.
func SlotConfigFor(network tx.Network) SlotConfig {
	switch network {
	case tx.Mainnet:
		return SlotConfig{ZeroTime: 1_596_059_091_000, ZeroSlot: 4_492_800, SlotLength: 1000}
	case tx.Preprod:
		return SlotConfig{ZeroTime: 1_655_769_600_000, ZeroSlot: 86_400, SlotLength: 1000}
	case tx.Preview:
		return SlotConfig{ZeroTime: 1_666_656_000_000, ZeroSlot: 0, SlotLength: 1000}
	default:
		return SlotConfig{SlotLength: 1000}
	}
}

// SlotToTime returns the millisecond timestamp at the start of slot.
func (c SlotConfig) SlotToTime(slot uint64) int64 {
	return c.ZeroTime + int64(slot-c.ZeroSlot)*c.SlotLength
}

// TimeToSlot returns the slot containing the millisecond timestamp ms.
func (c SlotConfig) TimeToSlot(ms int64) uint64 {
	return c.ZeroSlot + uint64((ms-c.ZeroTime)/c.SlotLength)
}
