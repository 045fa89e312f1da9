package config

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
)

//go:embed endpoints.yaml
var defaultEndpointsYAML []byte

// DefaultCatalog returns the endpoint catalog embedded in the binary.
func DefaultCatalog() (model.Catalog, error) {
	return ParseCatalog(defaultEndpointsYAML)
}

// LoadCatalog reads an endpoint catalog from path, or returns the embedded
// catalog when path is empty.
func LoadCatalog(path string) (model.Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file %q: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML endpoint catalog keyed by endpoint name.
func ParseCatalog(data []byte) (model.Catalog, error) {
	var raw map[string]model.Endpoint
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse endpoints: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("parse endpoints: catalog is empty")
	}

	catalog := make(model.Catalog, len(raw))
	for key, ep := range raw {
		ep.Key = key
		if ep.APIName == "" {
			return nil, fmt.Errorf("endpoint %q: api_name is required", key)
		}
		if ep.SupportsTimePeriod && ep.DefaultPeriod != "" && !slices.Contains(ep.AllowedTimePeriods, ep.DefaultPeriod) {
			return nil, fmt.Errorf("endpoint %q: default_period %q is not in allowed_time_periods", key, ep.DefaultPeriod)
		}
		for _, f := range ep.UploadFields {
			if f.Name == "" || !f.Type.Known() {
				return nil, fmt.Errorf("endpoint %q: upload field %q has unsupported type %q", key, f.Name, f.Type)
			}
		}
		catalog[key] = ep
	}
	return catalog, nil
}
