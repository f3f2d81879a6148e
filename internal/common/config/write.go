package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

func writeJSONIndent(path string, v interface{}, indent string) error {
	data, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return errors.Wrapf(err, "marshaling %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
