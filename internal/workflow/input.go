package workflow

import (
	"fmt"
	"strings"

	"github.com/spigell/job-matcher/internal/profile"
)

// Input is what a caller hands to a run.
type Input struct {
	ResumeText         string
	LocationPreference string
	WorkMode           profile.WorkMode
	SearchRadius       int
	MinSalary          float64

	// Profile, when set, is used instead of extracting one from ResumeText.
	Profile *profile.Profile
}

// ValidationError reports bad input before any external call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the input and fills defaults.
func (in *Input) Validate() error {
	in.ResumeText = strings.TrimSpace(in.ResumeText)
	in.LocationPreference = strings.TrimSpace(in.LocationPreference)

	if in.ResumeText == "" && in.Profile == nil {
		return &ValidationError{Field: "resume", Reason: "resume text is required"}
	}

	mode, err := profile.ParseWorkMode(string(in.WorkMode))
	if err != nil {
		return &ValidationError{Field: "work mode", Reason: err.Error()}
	}
	in.WorkMode = mode

	if in.SearchRadius < 0 {
		return &ValidationError{Field: "search radius", Reason: "must not be negative"}
	}
	if in.MinSalary < 0 {
		return &ValidationError{Field: "minimum salary", Reason: "must not be negative"}
	}

	if in.Profile != nil {
		if err := in.Profile.Validate(); err != nil {
			return &ValidationError{Field: "profile", Reason: err.Error()}
		}
	}

	return nil
}
