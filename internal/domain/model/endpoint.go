package model

import (
	"slices"
	"sort"
	"strings"
)

// Endpoint describes the capabilities of one Zotok entity endpoint.
type Endpoint struct {
	Key                string      `yaml:"-" json:"key"`
	APIName            string      `yaml:"api_name" json:"apiName"`
	SupportsPagination bool        `yaml:"supports_pagination" json:"supportsPagination"`
	SupportsTimePeriod bool        `yaml:"supports_time_period" json:"supportsTimePeriod"`
	AllowedTimePeriods []string    `yaml:"allowed_time_periods" json:"allowedTimePeriods"`
	DefaultPeriod      string      `yaml:"default_period" json:"defaultPeriod,omitempty"`
	SupportsUpload     bool        `yaml:"supports_upload" json:"supportsUpload"`
	UploadPath         string      `yaml:"upload_path" json:"uploadPath,omitempty"`
	WrapperKey         string      `yaml:"wrapper_key" json:"wrapperKey,omitempty"`
	UploadFields       []FieldSpec `yaml:"upload_fields" json:"uploadFields,omitempty"`
}

// ResolvePeriod returns the period value to send for a fetch. An empty period
// falls back to the endpoint default. A period for an endpoint without
// time-period support is dropped. A period outside the allow-list is a
// validation error.
func (e Endpoint) ResolvePeriod(period string) (string, error) {
	if !e.SupportsTimePeriod {
		return "", nil
	}
	period = strings.TrimSpace(period)
	if period == "" {
		return e.DefaultPeriod, nil
	}
	if !slices.Contains(e.AllowedTimePeriods, period) {
		return "", NewValidationError("resolve period",
			"period "+period+" is not allowed for "+e.Key+" (allowed: "+strings.Join(e.AllowedTimePeriods, ", ")+")")
	}
	return period, nil
}

// UploadTarget returns the API path segment entity uploads are POSTed to.
func (e Endpoint) UploadTarget() string {
	if e.UploadPath != "" {
		return e.UploadPath
	}
	return e.APIName
}

// PayloadKey returns the key upload records are wrapped under.
func (e Endpoint) PayloadKey() string {
	if e.WrapperKey != "" {
		return e.WrapperKey
	}
	return e.Key
}

// Catalog maps endpoint keys to their capabilities.
type Catalog map[string]Endpoint

// Lookup returns the endpoint for key or a validation error naming the known keys.
func (c Catalog) Lookup(key string) (Endpoint, error) {
	ep, ok := c[key]
	if !ok {
		return Endpoint{}, NewValidationError("lookup endpoint",
			"unknown endpoint "+`"`+key+`"`+" (available: "+strings.Join(c.Keys(), ", ")+")")
	}
	return ep, nil
}

// Keys returns the endpoint keys in sorted order.
func (c Catalog) Keys() []string {
	return sortedKeys(c)
}

// Endpoints returns all endpoints sorted by key.
func (c Catalog) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(c))
	for _, k := range c.Keys() {
		out = append(out, c[k])
	}
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
