package collector

import "testing"

func TestParseTemperature(t *testing.T) {
	cases := []struct {
		line string
		want float64
		ok   bool
	}{
		{"Temperature: 23.51 C", 23.51, true},
		{"Temperature: 0.0 C", 0, true},
		{"Temperature: 100 C", 100, true},
		{"Temperature: -5.0 C", 0, false},
		{"temperature: 23.51 C", 0, false},
		{"Temperature: 23.51", 0, false},
		{"Humidity: 40.0 %", 0, false},
		{"", 0, false},
		{"Temperature: abc C", 0, false},
	}

	for _, tc := range cases {
		got, ok := parseTemperature(tc.line)
		if ok != tc.ok {
			t.Errorf("parseTemperature(%q) ok = %v, want %v", tc.line, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("parseTemperature(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}
