package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"pointconv/internal/conversion"
)

var validate = validator.New()

// Settings is the configuration widget shown for the Arcsin action.
type Settings struct {
	Factor float32 `json:"factor" validate:"gte=1,lte=100" jsonschema:"title=Factor,description=Divisor applied before asinh,minimum=1,maximum=100,default=5"`
}

func DefaultSettings() Settings {
	return Settings{Factor: conversion.DefaultFactor}
}

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("plugin: settings: %w", err)
	}
	return nil
}

// SettingsSchema renders the widget as JSON Schema for hosts that build their
// own forms.
func SettingsSchema() ([]byte, error) {
	r := jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	b, err := json.MarshalIndent(r.Reflect(&Settings{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("plugin: settings schema: %w", err)
	}
	return b, nil
}
