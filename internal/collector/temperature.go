package collector

import (
	"regexp"
	"strconv"
)

// temperatureLine matches the line protocol the ESP32 firmware emits
// over UDP and serial, e.g. "Temperature: 23.51 C".
var temperatureLine = regexp.MustCompile(`^Temperature: (\d+(?:\.\d+)?) C$`)

// parseTemperature extracts the reading from one protocol line. The
// second result is false for anything that doesn't match.
func parseTemperature(line string) (float64, bool) {
	m := temperatureLine.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
