package jobs

import (
	"strings"
	"time"
)

// Source is the job board a record was attributed to.
type Source string

const (
	SourceLinkedIn Source = "LinkedIn"
	SourceIndeed   Source = "Indeed"
	SourceOther    Source = "Other"
)

// ParseSource maps a free-form source tag onto a known Source.
func ParseSource(tag string) Source {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "linkedin":
		return SourceLinkedIn
	case "indeed":
		return SourceIndeed
	default:
		return SourceOther
	}
}

// Raw is a job record exactly as a source returned it. Keys vary by source.
type Raw map[string]any

// Record is the canonical job posting shape every scorer works with.
type Record struct {
	ID             string   `json:"job_id" yaml:"job_id"`
	Title          string   `json:"title" yaml:"title"`
	Company        string   `json:"company" yaml:"company"`
	Location       string   `json:"location" yaml:"location"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	ApplicationURL string   `json:"application_url" yaml:"application_url"`
	Source         Source   `json:"source" yaml:"source"`
	RequiredSkills []string `json:"required_skills" yaml:"required_skills"`
	SalaryInfo     string   `json:"salary_info,omitempty" yaml:"salary_info,omitempty"`

	PostedDate time.Time `json:"posted_date" yaml:"posted_date"`
	// PostedDateDefaulted is set when the source gave no usable date and
	// PostedDate was substituted with "7 days ago".
	PostedDateDefaulted bool `json:"posted_date_defaulted,omitempty" yaml:"posted_date_defaulted,omitempty"`
}

// Raw renders the record back into canonical raw keys, so normalizing it
// again yields the same record.
func (r Record) Raw() Raw {
	raw := Raw{
		keyID:             r.ID,
		keyTitle:          r.Title,
		keyCompany:        r.Company,
		keyLocation:       r.Location,
		keyDescription:    r.Description,
		keyApplicationURL: r.ApplicationURL,
		keySource:         string(r.Source),
		keyRequiredSkills: append([]string(nil), r.RequiredSkills...),
		keyPostedDate:     r.PostedDate.Format(time.RFC3339Nano),
	}
	if r.SalaryInfo != "" {
		raw[keySalaryInfo] = r.SalaryInfo
	}
	if r.PostedDateDefaulted {
		raw[keyPostedDateDefaulted] = true
	}
	return raw
}

// Records is an ordered list of canonical job records.
type Records []Record
