package model

import (
	"fmt"
	"log"
	"path/filepath"
)

// Artifact file names inside the model directory.
const (
	scalerFile       = "scaler.json"
	regressorFile    = "aqi_regressor.json"
	soilImputerFile  = "soil_imputer.json"
	personalRiskFile = "personal_risk.json"
	sequenceFile     = "sequence_model.json"
)

// WindowLen is the look-back window (in hourly rows) the sequence model
// consumes.
const WindowLen = 72

// Registry holds every loaded model handle plus the fitted scaler. It is
// built once at startup and shared read-only across requests. A nil field
// means that artifact failed to load; accessors translate nil into
// ErrModelUnavailable so endpoints degrade instead of crashing.
type Registry struct {
	scaler       *Scaler
	regressor    *LinearModel
	soilImputer  *LinearModel
	personalRisk *LinearModel
	sequence     *LinearModel
}

// LoadRegistry loads all model artifacts from dir. Each artifact fails
// loudly but independently: a missing personal-risk model must not take
// down ambient prediction.
func LoadRegistry(dir string) *Registry {
	r := &Registry{}

	scaler, err := LoadScaler(filepath.Join(dir, scalerFile))
	if err != nil {
		log.Printf("CRITICAL: could not load feature scaler: %v", err)
	} else if err := validateNames("scaler", scaler.Features, CanonicalFeatures); err != nil {
		log.Printf("CRITICAL: scaler schema rejected: %v", err)
	} else {
		r.scaler = scaler
	}

	r.regressor = r.loadValidated("aqi-regressor", filepath.Join(dir, regressorFile), func(m *LinearModel) error {
		if r.scaler == nil {
			return fmt.Errorf("%w: scaler required to validate regressor schema", ErrModelUnavailable)
		}
		return validateNames("aqi-regressor", m.Inputs(), r.scaler.RegressionFeatures())
	})

	r.soilImputer = r.loadValidated("soil-imputer", filepath.Join(dir, soilImputerFile), func(m *LinearModel) error {
		if err := validateNames("soil-imputer inputs", m.Inputs(), SoilImputerFeatures); err != nil {
			return err
		}
		return validateNames("soil-imputer outputs", m.Outputs(), SoilImputerOutputs)
	})

	r.personalRisk = r.loadValidated("personal-risk", filepath.Join(dir, personalRiskFile), func(m *LinearModel) error {
		return validateNames("personal-risk", m.Inputs(), PersonalRiskFeatures)
	})

	r.sequence = r.loadValidated("sequence-forecaster", filepath.Join(dir, sequenceFile), func(m *LinearModel) error {
		if r.scaler == nil {
			return fmt.Errorf("%w: scaler required to validate sequence model width", ErrModelUnavailable)
		}
		if want := WindowLen * len(r.scaler.Features); m.InputLen() != want {
			return fmt.Errorf("%w: sequence model expects input width %d, artifact has %d", ErrFeatureMismatch, want, m.InputLen())
		}
		return nil
	})

	return r
}

func (r *Registry) loadValidated(name, path string, validate func(*LinearModel) error) *LinearModel {
	m, err := LoadLinearModel(name, path)
	if err != nil {
		log.Printf("CRITICAL: could not load %s model: %v", name, err)
		return nil
	}
	if err := validate(m); err != nil {
		log.Printf("CRITICAL: %s model schema rejected: %v", name, err)
		return nil
	}
	log.Printf("%s model loaded", name)
	return m
}

// NewRegistry assembles a registry from in-memory handles. Tests use it to
// inject small hand-built models.
func NewRegistry(scaler *Scaler, regressor, soilImputer, personalRisk, sequence *LinearModel) *Registry {
	return &Registry{
		scaler:       scaler,
		regressor:    regressor,
		soilImputer:  soilImputer,
		personalRisk: personalRisk,
		sequence:     sequence,
	}
}

// Scaler returns the fitted scaler or ErrModelUnavailable.
func (r *Registry) Scaler() (*Scaler, error) {
	if r.scaler == nil {
		return nil, Unavailable("feature scaler")
	}
	return r.scaler, nil
}

// Regressor returns the ambient AQI regression model or ErrModelUnavailable.
func (r *Registry) Regressor() (Predictor, error) {
	if r.regressor == nil {
		return nil, Unavailable("aqi regression model")
	}
	return r.regressor, nil
}

// SoilImputer returns the soil feature imputation model or ErrModelUnavailable.
func (r *Registry) SoilImputer() (Predictor, error) {
	if r.soilImputer == nil {
		return nil, Unavailable("soil imputation model")
	}
	return r.soilImputer, nil
}

// PersonalRisk returns the personal risk model or ErrModelUnavailable.
func (r *Registry) PersonalRisk() (Predictor, error) {
	if r.personalRisk == nil {
		return nil, Unavailable("personal risk model")
	}
	return r.personalRisk, nil
}

// Sequence returns the sequence forecasting model or ErrModelUnavailable.
func (r *Registry) Sequence() (Predictor, error) {
	if r.sequence == nil {
		return nil, Unavailable("sequence forecasting model")
	}
	return r.sequence, nil
}

// RegressionFeatures exposes the canonical regression feature order, used by
// the API layer to tell clients what a predict payload must contain.
func (r *Registry) RegressionFeatures() []string {
	if r.scaler == nil {
		return nil
	}
	return r.scaler.RegressionFeatures()
}
