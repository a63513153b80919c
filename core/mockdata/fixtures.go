// Package mockdata builds the mock table answering API requests when the backend cannot:
// canned fixtures plus working auth and upload routes.
package mockdata

import (
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-admin/core/user"
)

//go:embed fixtures.yaml
var fixturesYAML []byte

type (
	// Fixtures is the content of the fixture file.
	Fixtures struct {
		Users     []Account  `json:"users"`
		Routes    []Route    `json:"routes"`
		Resources []Resource `json:"resources"`
	}

	// Account is a user known to the mock login route.
	Account struct {
		user.User
		Password string `json:"password"`
	}

	// Route is a static answer to an exact (method, path) pair.
	Route struct {
		Method  string          `json:"method"`
		Path    string          `json:"path"`
		Payload json.RawMessage `json:"payload"`
	}

	// Resource answers every path containing Match.
	Resource struct {
		Match string            `json:"match"`
		Items []json.RawMessage `json:"items"`
	}
)

// LoadFixtures parses the embedded fixture file.
func LoadFixtures() (*Fixtures, error) {
	return ParseFixtures(fixturesYAML)
}

// ParseFixtures parses a YAML fixture document. Field names follow the JSON API.
func ParseFixtures(doc []byte) (*Fixtures, error) {
	var tree interface{}
	if err := yaml.Unmarshal(doc, &tree); err != nil {
		return nil, errors.Wrap(err, "parsing fixtures")
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "converting fixtures")
	}

	fx := new(Fixtures)
	if err := json.Unmarshal(raw, fx); err != nil {
		return nil, errors.Wrap(err, "decoding fixtures")
	}
	return fx, nil
}
