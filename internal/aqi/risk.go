package aqi

import (
	"fmt"
	"strings"

	"github.com/airsense/aqicast/internal/model"
)

const defaultAge = 30

var (
	respiratoryKeywords = []string{"asthma", "copd", "respiratory"}
	cardiacKeywords     = []string{"heart", "cardiovascular"}
)

// Profile carries the health attributes a caller may attach to a request.
// It is read-only input owned by the (external) user layer.
type Profile struct {
	Age        *int   `json:"age"`
	Conditions string `json:"conditions"`
}

// Empty reports whether the profile carries nothing to adjust on.
func (p *Profile) Empty() bool {
	return p == nil || (p.Age == nil && strings.TrimSpace(p.Conditions) == "")
}

// Adjustment is the personalized view of an ambient AQI value.
type Adjustment struct {
	Perceived float64 `json:"perceivedAqi"`
	Advice    string  `json:"personalAdvice"`
}

// Adjuster combines ambient AQI with a user profile through the personal
// risk model. Perceived risk is never reported below ambient risk.
type Adjuster struct {
	registry *model.Registry
}

func NewAdjuster(registry *model.Registry) *Adjuster {
	return &Adjuster{registry: registry}
}

// Adjust returns nil when the profile is absent or empty: the ambient value
// stands alone. Otherwise it runs the personal risk model and assembles
// rule-based advice.
func (a *Adjuster) Adjust(ambient float64, profile *Profile) (*Adjustment, error) {
	if profile.Empty() {
		return nil, nil
	}

	risk, err := a.registry.PersonalRisk()
	if err != nil {
		return nil, err
	}

	age := defaultAge
	if profile.Age != nil {
		age = *profile.Age
	}
	conditions := strings.ToLower(profile.Conditions)

	vec := []float64{ambient, float64(age), boolFeature(hasAny(conditions, respiratoryKeywords...)), boolFeature(hasAny(conditions, cardiacKeywords...))}
	out, err := risk.Predict([][]float64{vec})
	if err != nil {
		return nil, fmt.Errorf("personal risk inference: %w", err)
	}

	perceived := out[0][0]
	if perceived < ambient {
		perceived = ambient
	}

	return &Adjustment{
		Perceived: perceived,
		Advice:    adviceFor(perceived, profile, conditions),
	}, nil
}

// adviceFor assembles warnings from rule triggers, independent of the model
// output. The rules key off the perceived value's category.
func adviceFor(perceived float64, profile *Profile, conditions string) string {
	sensitive := Categorize(perceived).Sensitive()

	var parts []string
	if profile.Age != nil && *profile.Age > 60 && sensitive {
		parts = append(parts, "Given your age, it is strongly recommended to stay indoors.")
	}
	if sensitive && hasAny(conditions, respiratoryKeywords...) {
		parts = append(parts, "Your respiratory condition puts you at high risk. Avoid all outdoor activity.")
	}
	if sensitive && hasAny(conditions, cardiacKeywords...) {
		parts = append(parts, "Your heart condition makes you more vulnerable. Avoid strenuous activity.")
	}

	if len(parts) == 0 {
		return "The current air quality should not pose a significant additional risk based on your profile."
	}
	return strings.Join(parts, " ")
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// hasAny returns true if s contains any of the substrings.
func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
