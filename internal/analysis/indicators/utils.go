package indicators

import (
	"math"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.ErrInsufficientData
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.ErrInvalidPeriod
)

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// finite reports whether every value is a real number.
func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Point is one indicator value tagged with the timestamp of the sample it belongs to.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Series is a timestamp-tagged indicator output. Warm-up indices have no point.
type Series []Point

// Last returns the most recent point.
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Align tags values with the timestamps of samples, starting at sample index offset.
func Align(samples []models.PriceSample, values []float64, offset int) Series {
	if len(values) == 0 || offset < 0 || offset+len(values) > len(samples) {
		return Series{}
	}
	series := make(Series, len(values))
	for i, v := range values {
		series[i] = Point{Timestamp: samples[offset+i].Timestamp, Value: v}
	}
	return series
}
