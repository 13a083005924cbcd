package handler

import (
	"github.com/go-playground/validator/v10"

	"github.com/oscarfrank/saas-template-sub007/internal/activity"
	"github.com/oscarfrank/saas-template-sub007/internal/gateway"
)

// Package-level dependencies, wired once at startup from main.
var (
	payments *gateway.Registry
	counters *activity.Counter
	recorder *activity.Recorder
)

// Initialize wires the handler package's dependencies
func Initialize(registry *gateway.Registry, counter *activity.Counter, rec *activity.Recorder) {
	payments = registry
	counters = counter
	recorder = rec
}

// Validator adapts go-playground/validator to echo's Validator interface
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
