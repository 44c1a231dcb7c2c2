package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// ValidationError collects multiple validation errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// Unwrap marks every validation failure as a configuration error.
func (e *ValidationError) Unwrap() error {
	return fleet.ErrInvalidConfig
}

func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

var validate = newValidator()

// newValidator reports fields by their YAML path.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateFields runs the struct tag rules and the core knob checks.
func validateFields(cfg *Config) *ValidationError {
	ve := &ValidationError{}

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			ve.Add(err.Error())
			return ve
		}
		for _, fe := range fieldErrs {
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				ve.Add(fmt.Sprintf("%s must satisfy %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value()))
			} else {
				ve.Add(fmt.Sprintf("%s is %s", field, fe.Tag()))
			}
		}
	}

	if _, err := cfg.SortOptions(); err != nil {
		ve.Add(fmt.Sprintf("report: %s", strings.TrimPrefix(err.Error(), fleet.ErrInvalidConfig.Error()+": ")))
	}

	if t := cfg.Outliers.Threshold; !(t > 0) || math.IsInf(t, 1) {
		ve.Add(fmt.Sprintf("outliers.threshold must be a positive number, got %v", t))
	}

	if f := cfg.Balance.FeeMultiplier; !(f > 0) || math.IsInf(f, 1) {
		ve.Add(fmt.Sprintf("balance.feeMultiplier must be a positive number, got %v", f))
	}

	return ve
}

// ValidateDetailed performs comprehensive config validation.
func ValidateDetailed(cfg *Config) *ValidationError {
	ve := validateFields(cfg)

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			ve.Add(fmt.Sprintf("invalid schedule %q: %v", cfg.Schedule, err))
		}
	}

	switch cfg.Provider {
	case "vastai":
		if cfg.VastAI.APIKey == "" {
			ve.Add("vastai API key is required: set VASTAI_API_KEY or vastai.apiKeyFile")
		}
	case "static":
		if cfg.Static.Path == "" {
			ve.Add("static.path is required when provider is static")
		}
	}

	switch cfg.Fetch.Source {
	case "ssh":
		if cfg.SSH.PrivateKeyPath == "" {
			ve.Add("ssh.privateKeyPath is required when fetch.source is ssh")
		}
	case "file":
		if cfg.Fetch.LogDir == "" {
			ve.Add("fetch.logDir is required when fetch.source is file")
		}
	}

	if cfg.Advisor.Enabled {
		if cfg.Advisor.Model == "" {
			ve.Add("advisor.model is required when the advisor is enabled")
		}
		if cfg.Advisor.Timeout <= 0 {
			ve.Add("advisor.timeout must be > 0")
		}
	}

	return ve
}
