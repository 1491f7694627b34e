package transmitter

import (
	"fmt"
	"sort"
)

// presetChannels maps a requested carrier count to the channel IDs
// that spread those carriers across the band. Counts follow the
// transmitter's deployment profiles.
var presetChannels = map[int][]int{
	1:  {1},
	2:  {1, 7},
	3:  {12, 4, 8},
	4:  {12, 3, 6, 9},
	6:  {12, 2, 4, 6, 8, 10},
	8:  {12, 1, 3, 4, 6, 7, 9, 10},
	12: {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
}

// PresetCounts returns the supported carrier counts in ascending
// order.
func PresetCounts() []int {
	counts := make([]int, 0, len(presetChannels))
	for count := range presetChannels {
		counts = append(counts, count)
	}
	sort.Ints(counts)
	return counts
}

// PresetChannels returns the channel IDs for a carrier count.
func PresetChannels(count int) ([]int, error) {
	ids, ok := presetChannels[count]
	if !ok {
		return nil, fmt.Errorf("no channel preset for %d carriers (supported %v)", count, PresetCounts())
	}
	out := make([]int, len(ids))
	copy(out, ids)
	return out, nil
}

// PresetFrequencyHz returns the band-plan frequency for a channel:
// 540 kHz for channel 1, stepping 100 kHz per channel.
func PresetFrequencyHz(channel int) (int64, error) {
	if err := ValidateChannel(channel); err != nil {
		return 0, err
	}
	return DefaultFrequencyHz + int64(channel-1)*100_000, nil
}

// PlanPreset expands a carrier count into the channel settings the
// supervisor should push: every channel at its band-plan frequency,
// with the preset channels enabled and everything else disabled.
func PlanPreset(count int) ([ChannelCount]Channel, error) {
	var plan [ChannelCount]Channel

	ids, err := PresetChannels(count)
	if err != nil {
		return plan, err
	}

	for i := range plan {
		hz, err := PresetFrequencyHz(i + 1)
		if err != nil {
			return plan, err
		}
		plan[i] = Channel{ID: i + 1, FrequencyHz: hz}
	}
	for _, id := range ids {
		plan[id-1].Enabled = true
	}
	return plan, nil
}

// PresetMask returns the CH:EN bitmask for a carrier count, bit 0
// for channel 1.
func PresetMask(count int) (uint16, error) {
	ids, err := PresetChannels(count)
	if err != nil {
		return 0, err
	}
	var mask uint16
	for _, id := range ids {
		mask |= 1 << (id - 1)
	}
	return mask, nil
}
