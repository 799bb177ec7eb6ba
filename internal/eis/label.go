package eis

import (
	"fmt"
	"strings"
)

// AbsoluteZeroCelsius converts the chamber's Celsius setpoints to Kelvin.
const AbsoluteZeroCelsius = 273.15

// temperatureKeys are the chamber setpoints of the measurement campaign,
// in sweep order. RT1 and RT2 are the room-temperature measurements taken
// before and after the cold sweep.
var temperatureKeys = []string{"RT1", "-40", "-30", "-20", "-10", "00", "RT2"}

// batchIndex is the position of the batch letter inside a cell identifier.
const batchIndex = 11

// Label is the decomposed test key: which cell was measured at which
// chamber setpoint. Test keys follow `<cell>_<temperature>`, where the
// cell identifier carries the batch letter and a two-digit cell number.
type Label struct {
	Cell        string
	Batch       string
	Number      string
	Temperature string
}

// ParseLabel decomposes a test key.
func ParseLabel(key string) (Label, error) {
	sep := strings.LastIndex(key, "_")
	if sep < 0 {
		return Label{}, fmt.Errorf("test key %q has no temperature suffix", key)
	}

	cell, temp := key[:sep], key[sep+1:]
	if !validTemperature(temp) {
		return Label{}, fmt.Errorf("test key %q has unknown temperature %q", key, temp)
	}
	if len(cell) < batchIndex+3 {
		return Label{}, fmt.Errorf("test key %q has malformed cell identifier %q", key, cell)
	}

	batch := string(cell[batchIndex])
	if batch != "A" && batch != "B" {
		return Label{}, fmt.Errorf("test key %q names unknown batch %q", key, batch)
	}

	number := cell[batchIndex+1 : batchIndex+3]
	if number[0] < '0' || number[0] > '9' || number[1] < '0' || number[1] > '9' {
		return Label{}, fmt.Errorf("test key %q has malformed cell number %q", key, number)
	}

	return Label{Cell: cell, Batch: batch, Number: number, Temperature: temp}, nil
}

func validTemperature(t string) bool {
	for _, known := range temperatureKeys {
		if t == known {
			return true
		}
	}
	return false
}

// TemperatureKelvin returns the chamber setpoint in Kelvin. The two
// room-temperature measurements sit at 25 °C.
func (l Label) TemperatureKelvin() float64 {
	if strings.HasPrefix(l.Temperature, "RT") {
		return 25.0 + AbsoluteZeroCelsius
	}
	celsius := 0.0
	fmt.Sscanf(l.Temperature, "%f", &celsius)
	return celsius + AbsoluteZeroCelsius
}

// socByCell maps batch letter + cell number to the state of charge the
// cell was set to during the experiment.
var socByCell = map[string]string{
	"A01": "100%", "A02": "93%", "A03": "87%", "A04": "80%", "A05": "73%",
	"A06": "67%", "A07": "60%", "A08": "53%", "A09": "47%", "A10": "40%",
	"B01": "100%", "B02": "93%", "B03": "87%", "B04": "80%", "B05": "73%",
	"B06": "67%", "B07": "60%", "B08": "53%", "B09": "47%", "B10": "40%",
}

// SoC returns the cell's state of charge as recorded in the experiment
// log, e.g. "93%".
func (l Label) SoC() (string, error) {
	soc, ok := socByCell[l.Batch+l.Number]
	if !ok {
		return "", fmt.Errorf("no state of charge recorded for cell %s%s", l.Batch, l.Number)
	}
	return soc, nil
}

// SoCNumeric returns the state of charge as a fraction in [0, 1].
func (l Label) SoCNumeric() (float64, error) {
	soc, err := l.SoC()
	if err != nil {
		return 0, err
	}
	var pct float64
	if _, err := fmt.Sscanf(soc, "%f%%", &pct); err != nil {
		return 0, fmt.Errorf("malformed state of charge %q: %w", soc, err)
	}
	return pct / 100, nil
}

// PaperLabel renders the label the way the publication references cells,
// e.g. "A03 (87%)".
func (l Label) PaperLabel() (string, error) {
	soc, err := l.SoC()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s (%s)", l.Batch, l.Number, soc), nil
}
