package census

import "math"

// NeighborhoodScore rates a zip from 1 to 10. It starts at 5 and adjusts
// for median income, median home value, vacancy and owner occupancy; factors
// the ACS did not report are skipped.
func NeighborhoodScore(n *Neighborhood) int {
	score := 5.0

	if inc := n.MedianIncome; inc > 0 {
		switch {
		case inc >= 100_000:
			score += 2
		case inc >= 75_000:
			score++
		case inc >= 50_000:
		case inc >= 35_000:
			score--
		default:
			score -= 2
		}
	}

	if v := n.MedianHomeValue; v > 0 {
		switch {
		case v >= 400_000:
			score++
		case v >= 250_000:
			score += 0.5
		case v < 150_000:
			score--
		}
	}

	if r := n.VacancyRate; r >= 0 {
		switch {
		case r < 5:
			score++
		case r < 10:
		case r < 15:
			score -= 0.5
		default:
			score--
		}
	}

	if r := n.OwnerRate; r >= 0 {
		switch {
		case r >= 70:
			score++
		case r >= 50:
		default:
			score -= 0.5
		}
	}

	// Half scores round to even.
	return int(min(10, max(1, math.RoundToEven(score))))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
