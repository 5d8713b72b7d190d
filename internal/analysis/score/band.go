package score

// Band buckets an average into the five client mood levels (1 worst, 5 best).
func Band(avg float64) int {
	avg = Clamp(avg)
	switch {
	case avg <= 20:
		return 1
	case avg <= 40:
		return 2
	case avg <= 60:
		return 3
	case avg <= 80:
		return 4
	default:
		return 5
	}
}

var bandLabels = map[int]string{
	1: "couch potato",
	2: "warming up",
	3: "getting there",
	4: "on a roll",
	5: "unstoppable",
}

// BandLabel describes a band returned by Band.
func BandLabel(band int) string {
	if label, ok := bandLabels[band]; ok {
		return label
	}
	return "unknown"
}
