// Package config loads and validates the two on-disk documents JADE reads:
// the JSON job configuration and the TOML HPC configuration. Adapted from
// armada's internal/common/startup.go LoadConfig, generalized past viper's
// single json/yaml/toml auto-detection because the HPC config's tagged
// hpc_type union needs a validation pass validator/v10 can express directly
// on the decoded struct.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var validate = validator.New()

// LoadJSON reads a JSON document into out using viper, matching document
// keys to struct fields by their json tags, and then validates it. No
// environment-variable overrides are applied.
func LoadJSON(path string, out interface{}) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := v.Unmarshal(out, func(dc *mapstructure.DecoderConfig) { dc.TagName = "json" }); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return Validate(out)
}

// LoadTOML reads the HPC TOML configuration file.
func LoadTOML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if _, err := toml.Decode(string(data), out); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return Validate(out)
}

// Validate runs struct-tag validation and, on failure, returns one error
// naming every violated field (not just the first), following
// internal/common/config/validation.go's LogValidationErrors.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("config validation failed: %s", formatValidationErrors(verrs))
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("field %s failed check %q", e.Namespace(), e.Tag())
	}
	return msg
}

// WriteJSON serializes v as indented JSON and writes it to path. Used for
// the filtered per-batch config files; ClusterStore's atomic rewrites go
// through internal/cluster's own temp-file+rename, not this helper, since
// that path needs the rename to happen under the lock.
func WriteJSON(path string, v interface{}, indent string) error {
	return writeJSONIndent(path, v, indent)
}
