package models

// CategoryRule maps a keyword substring to a canonical category identifier.
type CategoryRule struct {
	Pattern  string `json:"pattern" yaml:"pattern"`
	Category string `json:"category" yaml:"category"`
}

// LocationEntry maps a city/state pair to a provider location code.
type LocationEntry struct {
	City  string `json:"city" yaml:"city"`
	State string `json:"state" yaml:"state"`
	Code  int    `json:"code" yaml:"code"`
}
