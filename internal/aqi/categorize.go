package aqi

import "math"

// Category describes one band of the AQI scale for presentation.
type Category struct {
	Label       string `json:"label"`
	Color       string `json:"color"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var (
	categoryUnknown   = Category{"Unknown", "#808080", "Data not available.", "question"}
	categoryGood      = Category{"Good", "#28a745", "Air quality is satisfactory.", "smile"}
	categoryModerate  = Category{"Moderate", "#ffc107", "Some pollutants may be a moderate health concern.", "neutral"}
	categorySensitive = Category{"Unhealthy for Sensitive Groups", "#fd7e14", "Members of sensitive groups may experience health effects.", "mask"}
	categoryUnhealthy = Category{"Unhealthy", "#dc3545", "Everyone may begin to experience health effects.", "sick"}
	categoryVery      = Category{"Very Unhealthy", "#8f3e97", "Health warnings of emergency conditions.", "dizzy"}
	categoryHazardous = Category{"Hazardous", "#7f0000", "Health alert: everyone should avoid all outdoor exertion.", "skull"}
)

// Categorize maps an AQI value onto the six-band scale. Upper bounds are
// inclusive. NaN maps to Unknown.
func Categorize(aqi float64) Category {
	if math.IsNaN(aqi) {
		return categoryUnknown
	}
	switch v := int(aqi); {
	case v <= 50:
		return categoryGood
	case v <= 100:
		return categoryModerate
	case v <= 150:
		return categorySensitive
	case v <= 200:
		return categoryUnhealthy
	case v <= 300:
		return categoryVery
	default:
		return categoryHazardous
	}
}

// Sensitive reports whether the category is in the range where sensitive
// groups are advised to limit exposure (Unhealthy for Sensitive Groups
// through Hazardous).
func (c Category) Sensitive() bool {
	switch c.Label {
	case categorySensitive.Label, categoryUnhealthy.Label, categoryVery.Label, categoryHazardous.Label:
		return true
	}
	return false
}
