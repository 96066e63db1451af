package query

import "strings"

// Warning classifies an advisory product intersecting a point.
type Warning struct {
	Type  string `json:"type"`
	Class string `json:"class"`
	Label string `json:"label"`
}

// productTiers is the classification priority: the first substring match
// wins, so a combined product text like "Hurricane Warning and Storm Surge
// Warning" classifies as the surge warning.
var productTiers = []Warning{
	{Type: "STORM SURGE WARNING", Class: "hw", Label: "SurgeWarn"},
	{Type: "HURRICANE WARNING", Class: "hw", Label: "HWarn"},
	{Type: "STORM SURGE WATCH", Class: "hwatch", Label: "SurgeWatch"},
	{Type: "HURRICANE WATCH", Class: "hwatch", Label: "HWatch"},
	{Type: "TROPICAL STORM WARNING", Class: "tsw", Label: "TSWarn"},
	{Type: "TROPICAL STORM WATCH", Class: "tswatch", Label: "TSWatch"},
}

// ClassifyProduct maps upstream product-type text to a Warning. The match is
// case-insensitive. Unrecognized non-empty text yields a generic advisory;
// empty text yields nil.
func ClassifyProduct(text string) *Warning {
	pt := strings.ToUpper(strings.TrimSpace(text))
	if pt == "" {
		return nil
	}
	for _, tier := range productTiers {
		if strings.Contains(pt, tier.Type) {
			w := tier
			return &w
		}
	}
	return &Warning{Type: pt, Class: "", Label: "Advisory"}
}
