// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// RegisterInfo describes one PZEM-004T v3 input register.
type RegisterInfo struct {
	Address     uint16     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Unit        string     `json:"unit,omitempty"`
	Resolution  string     `json:"resolution,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// BitField describes a field within a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// PZEMRegisterMap returns metadata for the input registers read each cycle.
// 32-bit quantities occupy two registers, low word first.
func PZEMRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x0000, Name: "VOLTAGE", Description: "Voltage", Unit: "V", Resolution: "0.1"},
		{Address: 0x0001, Name: "CURRENT_L", Description: "Current low 16 bits", Unit: "A", Resolution: "0.001"},
		{Address: 0x0002, Name: "CURRENT_H", Description: "Current high 16 bits", Unit: "A", Resolution: "0.001"},
		{Address: 0x0003, Name: "POWER_L", Description: "Active power low 16 bits", Unit: "W", Resolution: "0.1"},
		{Address: 0x0004, Name: "POWER_H", Description: "Active power high 16 bits", Unit: "W", Resolution: "0.1"},
		{Address: 0x0005, Name: "ENERGY_L", Description: "Active energy low 16 bits", Unit: "Wh", Resolution: "1"},
		{Address: 0x0006, Name: "ENERGY_H", Description: "Active energy high 16 bits", Unit: "Wh", Resolution: "1"},
		{Address: 0x0007, Name: "FREQUENCY", Description: "Line frequency", Unit: "Hz", Resolution: "0.1"},
		{Address: 0x0008, Name: "POWER_FACTOR", Description: "Power factor", Resolution: "0.01"},
		{Address: 0x0009, Name: "ALARM", Description: "Power alarm status",
			BitFields: []BitField{
				{Bits: "15:0", Name: "ALARM", Description: "Alarm flag", Values: "0x0000=No alarm, 0xFFFF=Power above threshold"},
			}},
	}
}

// RegisterName returns the register map name for addr, or "" if unknown.
func RegisterName(addr uint16) string {
	for _, r := range PZEMRegisterMap() {
		if r.Address == addr {
			return r.Name
		}
	}
	return ""
}
