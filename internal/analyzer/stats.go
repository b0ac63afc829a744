package analyzer

import (
	"math"
	"slices"

	"github.com/sells-group/auction-cli/internal/model"
)

// Margin bucket bounds, in percent.
const (
	marginHigh = 40
	marginMid  = 30
	marginLow  = 20
)

func statistics(props []model.Property) model.Statistics {
	s := model.Statistics{
		StateCounts: make(map[string]int),
		ByCity:      make(map[string]int),
		ByRegion:    make(map[string]int),
		ByPlatform:  make(map[string]int),
	}
	if len(props) == 0 {
		return s
	}

	prices := make([]float64, 0, len(props))
	var arv, sqft, hood float64
	for i := range props {
		p := &props[i]
		prices = append(prices, p.AuctionPrice)
		arv += p.EstimatedARV
		sqft += float64(p.Sqft)
		hood += float64(p.NeighborhoodScore)

		switch m := p.ProfitMargin; {
		case m >= marginHigh:
			s.DealsOver40Percent++
		case m >= marginMid:
			s.Deals30To40Percent++
		case m >= marginLow:
			s.Deals20To30Percent++
		}

		if p.State != "" {
			s.StateCounts[p.State]++
		}
		if p.City != "" {
			s.ByCity[p.City+", "+p.State]++
		}
		if p.Region != "" {
			s.ByRegion[p.Region+" ("+p.State+")"]++
		}
		if p.AuctionPlatform != "" {
			s.ByPlatform[p.AuctionPlatform]++
		}
	}

	n := float64(len(props))
	var total float64
	for _, v := range prices {
		total += v
	}
	s.AvgAuctionPrice = round2(total / n)
	s.MedianAuctionPrice = round2(median(prices))
	s.AvgARV = round2(arv / n)
	s.AvgSqft = round2(sqft / n)
	s.AvgNeighborhoodScore = round2(hood / n)
	return s
}

// median sorts vals in place.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	slices.Sort(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
