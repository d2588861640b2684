// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Slot is one of the six finishing positions a ballot predicts.
type Slot string

// The six ballot slots. The string value doubles as the record-store column
// holding the pick, e.g. quali_p1 -> quali_p1_driver.
const (
	SlotQualiP1 Slot = "quali_p1"
	SlotQualiP2 Slot = "quali_p2"
	SlotQualiP3 Slot = "quali_p3"
	SlotRaceP1  Slot = "race_p1"
	SlotRaceP2  Slot = "race_p2"
	SlotRaceP3  Slot = "race_p3"
)

var allSlots = [...]Slot{SlotQualiP1, SlotQualiP2, SlotQualiP3, SlotRaceP1, SlotRaceP2, SlotRaceP3}

// Slots returns the six slots in ballot order.
func Slots() []Slot {
	out := make([]Slot, len(allSlots))
	copy(out, allSlots[:])
	return out
}

// ParseSlot accepts the slot name with or without the _driver suffix.
func ParseSlot(s string) (Slot, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "_driver")
	for _, slot := range allSlots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", fmt.Errorf("unknown slot %q", s)
}

// Column is the record-store column that stores picks for this slot.
func (s Slot) Column() string { return string(s) + "_driver" }

// IsQualifying reports whether the slot predicts a qualifying position.
func (s Slot) IsQualifying() bool { return strings.HasPrefix(string(s), "quali_") }

// Position is the 1-based finishing position of the slot.
func (s Slot) Position() int {
	switch s {
	case SlotQualiP1, SlotRaceP1:
		return 1
	case SlotQualiP2, SlotRaceP2:
		return 2
	case SlotQualiP3, SlotRaceP3:
		return 3
	}
	return 0
}

func (s Slot) index() int {
	for i, slot := range allSlots {
		if slot == s {
			return i
		}
	}
	return -1
}
