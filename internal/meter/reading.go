package meter

import (
	"strconv"
	"strings"

	"chargepilot/internal/ocpp/protocol"
)

// Kind classifies a sampled value's measurand.
type Kind int

// Measurand kinds.
const (
	KindUnknown Kind = iota
	KindEnergy
	KindPower
)

// Legacy measurand spellings still sent by older firmware.
var legacyMeasurands = map[string]Kind{
	"Energy_Wh":              KindEnergy,
	"Energy_Export_Register": KindEnergy,
	"Energy_Import_Register": KindEnergy,
	"Power_W":                KindPower,
	"Power_Active_Import":    KindPower,
	"Power_Active_Export":    KindPower,
}

// Classify maps a measurand string to a kind. Besides the exact legacy
// literals, a case-insensitive substring rule applies: energy measurands
// contain "energy" plus one of "import"/"export"/"wh", power measurands
// contain "power" plus one of "active"/"w".
func Classify(measurand string) Kind {
	if kind, ok := legacyMeasurands[measurand]; ok {
		return kind
	}

	lower := strings.ToLower(measurand)
	if strings.Contains(lower, "energy") &&
		(strings.Contains(lower, "import") || strings.Contains(lower, "export") || strings.Contains(lower, "wh")) {
		return KindEnergy
	}
	if strings.Contains(lower, "power") &&
		(strings.Contains(lower, "active") || strings.Contains(lower, "w")) {
		return KindPower
	}
	return KindUnknown
}

// Reading holds values extracted from one MeterValues payload.
// Energy is in Wh, Power in W; nil means the payload carried no such value.
type Reading struct {
	EnergyWh *float64
	PowerW   *float64
}

// Empty reports whether nothing numeric was extracted.
func (r Reading) Empty() bool {
	return r.EnergyWh == nil && r.PowerW == nil
}

// Extract pulls energy and power readings out of a metering payload.
// Only the first meterValue entry is consulted. When a sampled value carries
// no measurand at all and no energy has been found yet, its value is treated
// as energy (backward-compatibility fallback).
func Extract(req protocol.MeterValuesRequest) Reading {
	var reading Reading
	if len(req.MeterValue) == 0 {
		return reading
	}

	for _, sv := range req.MeterValue[0].SampledValue {
		value, ok := toFloat(sv.Value)
		if !ok {
			continue
		}

		switch Classify(sv.Measurand) {
		case KindEnergy:
			v := value
			reading.EnergyWh = &v
		case KindPower:
			v := value
			reading.PowerW = &v
		default:
			if sv.Measurand == "" && reading.EnergyWh == nil {
				v := value
				reading.EnergyWh = &v
			}
		}
	}

	return reading
}

// toFloat coerces a numeric or numeric-string value; anything else is ignored.
func toFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	default:
		return 0, false
	}
}
