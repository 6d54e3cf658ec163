package types

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"

	jsonpatch "github.com/evanphx/json-patch"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBatchSize    = 32
	DefaultMaxEpochs    = 2
	DefaultTestFraction = 0.2
	DefaultLearningRate = 1.0

	CaseModeLower = "lower"
	CaseModeUpper = "upper"
	CaseModeNone  = "none"
)

type NormalizeParams struct {
	CaseMode         string `yaml:"case_mode" json:"case_mode"`
	KeepDiacritics   bool   `yaml:"keep_diacritics" json:"keep_diacritics"`
	KeepPunctuations bool   `yaml:"keep_punctuations" json:"keep_punctuations"`
	KeepNumbers      bool   `yaml:"keep_numbers" json:"keep_numbers"`
}

type Hyperparameters struct {
	BatchSize         int             `yaml:"batch_size" json:"batch_size"`
	MaxEpochs         int             `yaml:"max_epochs" json:"max_epochs"`
	TestFraction      float64         `yaml:"test_fraction" json:"test_fraction"`
	LearningRate      float64         `yaml:"learning_rate" json:"learning_rate"`
	Seed              int64           `yaml:"seed" json:"seed"`
	ValidateAlignment bool            `yaml:"validate_alignment" json:"validate_alignment"`
	Normalize         NormalizeParams `yaml:"normalize" json:"normalize"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		BatchSize:         DefaultBatchSize,
		MaxEpochs:         DefaultMaxEpochs,
		TestFraction:      DefaultTestFraction,
		LearningRate:      DefaultLearningRate,
		ValidateAlignment: true,
		Normalize: NormalizeParams{
			CaseMode:    CaseModeLower,
			KeepNumbers: true,
		},
	}
}

func (params Hyperparameters) Validate() error {
	if params.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrConfig, params.BatchSize)
	}
	if params.MaxEpochs <= 0 {
		return fmt.Errorf("%w: max_epochs must be positive, got %d", ErrConfig, params.MaxEpochs)
	}
	if math.IsNaN(params.TestFraction) || params.TestFraction <= 0 || params.TestFraction >= 1 {
		return fmt.Errorf("%w: test_fraction must be in (0, 1), got %v", ErrConfig, params.TestFraction)
	}
	if math.IsNaN(params.LearningRate) || math.IsInf(params.LearningRate, 0) || params.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be positive and finite, got %v", ErrConfig, params.LearningRate)
	}
	switch params.Normalize.CaseMode {
	case CaseModeLower, CaseModeUpper, CaseModeNone:
	default:
		return fmt.Errorf("%w: unknown case_mode %q", ErrConfig, params.Normalize.CaseMode)
	}
	return nil
}

// ApplyOverrides merges an RFC 7386 JSON merge patch into the parameters.
func (params Hyperparameters) ApplyOverrides(patch []byte) (Hyperparameters, error) {
	if len(patch) == 0 {
		return params, nil
	}
	doc, err := json.Marshal(params)
	if err != nil {
		return params, err
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return params, fmt.Errorf("%w: invalid overrides: %v", ErrConfig, err)
	}
	var res Hyperparameters
	if err = json.Unmarshal(merged, &res); err != nil {
		return params, fmt.Errorf("%w: invalid overrides: %v", ErrConfig, err)
	}
	return res, res.Validate()
}

// LoadHyperparameters reads a yaml file on top of the defaults. Absent keys keep their default values.
func LoadHyperparameters(filePath string) (Hyperparameters, error) {
	params := DefaultHyperparameters()
	buf, err := ioutil.ReadFile(filePath)
	if err != nil {
		return params, err
	}
	if err = yaml.Unmarshal(buf, &params); err != nil {
		return params, fmt.Errorf("%w: %s: %v", ErrConfig, filePath, err)
	}
	return params, params.Validate()
}
