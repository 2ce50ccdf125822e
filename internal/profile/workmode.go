package profile

import (
	"fmt"
	"strings"
)

// WorkMode is the candidate's preferred working arrangement.
type WorkMode string

const (
	WorkModeRemote WorkMode = "Remote"
	WorkModeOnSite WorkMode = "On-site"
	WorkModeHybrid WorkMode = "Hybrid"
	WorkModeAny    WorkMode = "Any"
)

// ParseWorkMode accepts the canonical names case-insensitively. An empty
// value means Any.
func ParseWorkMode(value string) (WorkMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "any":
		return WorkModeAny, nil
	case "remote":
		return WorkModeRemote, nil
	case "on-site", "onsite":
		return WorkModeOnSite, nil
	case "hybrid":
		return WorkModeHybrid, nil
	default:
		return "", fmt.Errorf("unknown work mode %q (want Remote, On-site, Hybrid or Any)", value)
	}
}

// PreferenceWorkMode is the preferences key carrying the work mode.
const PreferenceWorkMode = "work_mode_preference"

// WorkModeFrom reads the work mode out of a preferences map, falling back to
// Any when it is missing or unknown.
func WorkModeFrom(prefs map[string]any) WorkMode {
	var value string
	switch v := prefs[PreferenceWorkMode].(type) {
	case string:
		value = v
	case WorkMode:
		value = string(v)
	}
	if mode, err := ParseWorkMode(value); err == nil {
		return mode
	}
	return WorkModeAny
}
