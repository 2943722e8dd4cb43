package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/condosec/condowatch/internal/conf"
)

// runValidate resolves settings the same way realtime does and prints the
// effective values, so a deployment can check what clamping and environment
// overrides produced.
func runValidate(w io.Writer, configPath string) error {
	settings, err := conf.Load(configPath)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render settings: %w", err)
	}
	_, err = w.Write(out)
	return err
}
