package filtering

import (
	"context"
	"strings"
)

type companiesFilter struct {
	companies map[string]bool
	names     []string
}

// NewExcludedCompanies creates a filter that removes jobs by company name.
// Names are compared case-insensitively.
func NewExcludedCompanies(companies []string) Filter {
	f := &companiesFilter{companies: make(map[string]bool, len(companies))}
	for _, company := range companies {
		company = strings.TrimSpace(company)
		if company == "" {
			continue
		}
		f.companies[strings.ToLower(company)] = true
		f.names = append(f.names, company)
	}
	return f
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate() error { return nil }

func (f *companiesFilter) Apply(_ context.Context, c Candidates) (Candidates, Step, error) {
	initial := c.Len()
	if len(f.companies) == 0 {
		return c, newStep(initial, c), nil
	}

	left, _ := c.Without(func(candidate Candidate) bool {
		return f.companies[strings.ToLower(strings.TrimSpace(candidate.Company))]
	})

	return left, newStep(initial, left), nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
