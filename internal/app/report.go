// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/acquisition"
)

var (
	colorTitle = lipgloss.Color("51")
	colorLabel = lipgloss.Color("252")
	colorDim   = lipgloss.Color("240")
	colorOk    = lipgloss.Color("78")
	colorWarn  = lipgloss.Color("220")
	colorCrit  = lipgloss.Color("196")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	labelStyle = lipgloss.NewStyle().Foreground(colorLabel).Width(6)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)
	okStyle    = lipgloss.NewStyle().Foreground(colorOk)
	warnStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	critStyle  = lipgloss.NewStyle().Foreground(colorCrit)
)

// Reporter prints one block per acquisition cycle.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter { return &Reporter{out: out} }

// ObserveCycle implements acquisition.Observer.
func (r *Reporter) ObserveCycle(res acquisition.CycleResult) {
	fmt.Fprintln(r.out, RenderCycle(res))
}

// RenderCycle formats a cycle result for a terminal.
func RenderCycle(r acquisition.CycleResult) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("cycle %d", r.Cycle)) + " " +
			dimStyle.Render(r.StartedAt.Format("2006-01-02 15:04:05")),
	}

	env := labelStyle.Render("ENV")
	switch {
	case r.Environmental != nil:
		e := r.Environmental
		env += fmt.Sprintf("%6.2f °C  %6.2f %%  dew %6.2f °C  hi %6.2f °C",
			e.TemperatureC, e.HumidityPct, e.DewPointC, e.HeatIndexC)
		env += storeMark(r.EnvironmentalStoreErr)
	default:
		env += warnStyle.Render("no sample: " + errText(r.EnvironmentalErr))
	}
	lines = append(lines, env)

	elec := labelStyle.Render("PZEM")
	switch {
	case r.Electrical != nil:
		p := r.Electrical
		elec += fmt.Sprintf("%6.2f V  %6.3f A  %7.2f W  %9.3f %s  %5.2f Hz  PF %4.2f",
			p.VoltageV, p.CurrentA, p.PowerW, p.Energy, p.EnergyUnit, p.FrequencyHz, p.PowerFactor)
		if p.Alarm != 0 {
			elec += " " + critStyle.Render("ALARM")
		}
		elec += storeMark(r.ElectricalStoreErr)
	default:
		elec += warnStyle.Render("no sample: " + errText(r.ElectricalErr))
	}
	lines = append(lines, elec)

	return strings.Join(lines, "\n")
}

func storeMark(err error) string {
	if err != nil {
		return " " + critStyle.Render("not stored")
	}
	return " " + okStyle.Render("✓")
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
