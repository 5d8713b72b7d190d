package score

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Min and Max bound a valid productivity score.
const (
	Min = 0
	Max = 100
)

var (
	scorePattern    = regexp.MustCompile(`(?i)score:\s*(\d+)(?:\s*/\s*100)?`)
	trailingPattern = regexp.MustCompile(`(?i)\s*\**score:\s*\d+(?:\s*/\s*100)?\**\s*$`)
)

// Extract returns the last score in reply, when it is within [Min, Max].
// Earlier scores never stand in for a last one that is out of range.
func Extract(reply string) (int, bool) {
	matches := scorePattern.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return 0, false
	}

	value, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil || value < Min || value > Max {
		return 0, false
	}
	return value, true
}

// Strip removes a score line that ends the reply and trims surrounding whitespace.
func Strip(reply string) string {
	return strings.TrimSpace(trailingPattern.ReplaceAllString(reply, ""))
}

// Tracker accumulates scores into a running average. The zero value is ready to use.
type Tracker struct {
	Total int
	Count int
}

// Add records one score.
func (t *Tracker) Add(value int) {
	t.Total += value
	t.Count++
}

// Average is Total/Count, or 0 before any score was recorded.
func (t Tracker) Average() float64 {
	if t.Count == 0 {
		return 0
	}
	return float64(t.Total) / float64(t.Count)
}

// Format renders the average with two decimals, e.g. "70.00".
func (t Tracker) Format() string {
	return FormatAverage(t.Average())
}

// FormatAverage renders avg with two decimals.
func FormatAverage(avg float64) string {
	return fmt.Sprintf("%.2f", avg)
}

// Clamp forces avg into [Min, Max].
func Clamp(avg float64) float64 {
	if avg < Min {
		return Min
	}
	if avg > Max {
		return Max
	}
	return avg
}
