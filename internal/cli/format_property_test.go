package cli

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: FormatDuration always uses the two largest units and never
// produces negative numbers.
func TestProperty_DurationFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	pattern := regexp.MustCompile(`^(\d+s|\d+m \d+s|\d+h \d+m|\d+d \d+h)$`)

	properties.Property("FormatDuration matches the unit pattern", prop.ForAll(
		func(seconds int64) bool {
			formatted := FormatDuration(time.Duration(seconds) * time.Second)
			if !pattern.MatchString(formatted) {
				t.Logf("unexpected format for %ds: %s", seconds, formatted)
				return false
			}
			return !strings.Contains(formatted, "-")
		},
		gen.Int64Range(-3600, 400*24*3600),
	))

	properties.TestingRun(t)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
		{50 * time.Hour, "2d 2h"},
		{-time.Minute, "0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatLeverage(t *testing.T) {
	tests := map[float64]string{
		1:     "1x",
		5:     "5x",
		2.5:   "2.5x",
		12.25: "12.25x",
	}
	for in, want := range tests {
		if got := FormatLeverage(in); got != want {
			t.Errorf("FormatLeverage(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGeometry(t *testing.T) {
	g, err := parseGeometry("10, 20,30,40")
	if err != nil {
		t.Fatalf("parseGeometry() error = %v", err)
	}
	if g.StartX != 10 || g.StartY != 20 || g.EndX != 30 || g.EndY != 40 {
		t.Errorf("geometry = %+v", g)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,x"} {
		if _, err := parseGeometry(bad); err == nil {
			t.Errorf("parseGeometry(%q) should fail", bad)
		}
	}
}

func TestTableRender(t *testing.T) {
	var sb strings.Builder
	out := &Output{writer: &sb}
	table := NewTable(out, "A", "LONGER")
	table.AddRow("xyz", "1")
	table.Render()

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), sb.String())
	}
	if lines[0] != "A    LONGER" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "xyz  1" {
		t.Errorf("row = %q", lines[2])
	}
}
