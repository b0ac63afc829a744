package model

import "time"

// Alert flags a recommended deal whose margin clears an alert level.
type Alert struct {
	Level           string  `json:"level"`
	PropertyID      string  `json:"property_id"`
	Address         string  `json:"address"`
	ProfitMargin    float64 `json:"profit_margin"`
	ProfitPotential float64 `json:"profit_potential"`
	MaxBidPrice     float64 `json:"max_bid_price"`
	AuctionDate     string  `json:"auction_date"`
	DealScore       float64 `json:"deal_score"`
}

// Statistics holds aggregate figures over an analyzed property set.
type Statistics struct {
	StateCounts          map[string]int `json:"state_counts"`
	AvgAuctionPrice      float64        `json:"avg_auction_price"`
	MedianAuctionPrice   float64        `json:"median_auction_price"`
	AvgARV               float64        `json:"avg_arv"`
	AvgSqft              float64        `json:"avg_sqft"`
	DealsOver40Percent   int            `json:"deals_over_40_percent"`
	Deals30To40Percent   int            `json:"deals_30_to_40_percent"`
	Deals20To30Percent   int            `json:"deals_20_to_30_percent"`
	AvgNeighborhoodScore float64        `json:"avg_neighborhood_score"`
	ByCity               map[string]int `json:"by_city"`
	ByRegion             map[string]int `json:"by_region"`
	ByPlatform           map[string]int `json:"by_platform"`
}

// AnalysisResult is an immutable snapshot of one analysis pass.
type AnalysisResult struct {
	TotalProperties  int        `json:"total_properties"`
	RecommendedDeals int        `json:"recommended_deals"`
	AvgProfitMargin  float64    `json:"avg_profit_margin"`
	AvgDealScore     float64    `json:"avg_deal_score"`
	TopDeals         []Property `json:"top_deals"`
	AllProperties    []Property `json:"all_properties"`
	Alerts           []Alert    `json:"alerts"`
	Statistics       Statistics `json:"statistics"`
	Timestamp        time.Time  `json:"timestamp"`
}
