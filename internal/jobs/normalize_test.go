package jobs

import (
	"reflect"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestNormalizeDropsRecordsWithoutTitleOrCompany(t *testing.T) {
	n := NewNormalizer(fixedClock)

	raws := []Raw{
		{"title": "Go Developer", "company": "Acme"},
		{"title": "", "company": "Acme"},
		{"title": "Backend Engineer"},
		{"companyName": "Globex"},
		nil,
	}

	got, dropped := n.Normalize(raws, SourceIndeed)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if dropped != 4 {
		t.Fatalf("expected 4 dropped, got %d", dropped)
	}
	if got[0].Title != "Go Developer" || got[0].Company != "Acme" {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}

func TestNormalizeResolvesAliasesPerSource(t *testing.T) {
	n := NewNormalizer(fixedClock)

	tests := []struct {
		name   string
		raw    Raw
		tag    Source
		expect Record
	}{
		{
			name: "indeed shape",
			raw: Raw{
				"positionName":    "Data Engineer",
				"company":         "Initech",
				"location":        "Austin, TX",
				"applicationLink": "https://indeed.com/job/1",
				"url":             "https://indeed.com/viewjob?jk=1",
				"jobKey":          "jk-1",
				"postedDate":      "2025-03-05T08:00:00Z",
				"salary":          "$120,000 a year",
			},
			tag: SourceIndeed,
			expect: Record{
				ID:             "jk-1",
				Title:          "Data Engineer",
				Company:        "Initech",
				Location:       "Austin, TX",
				ApplicationURL: "https://indeed.com/job/1",
				Source:         SourceIndeed,
				RequiredSkills: []string{},
				SalaryInfo:     "$120,000 a year",
				PostedDate:     time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "linkedin shape",
			raw: Raw{
				"title":       "Software Engineer",
				"companyName": "Hooli",
				"place":       "Remote",
				"applyUrl":    "https://hooli.example/apply",
				"url":         "https://www.linkedin.com/jobs/view/42",
				"id":          float64(42),
				"skills":      []any{"Go", " SQL ", "go"},
			},
			tag: SourceOther,
			expect: Record{
				ID:                  "42",
				Title:               "Software Engineer",
				Company:             "Hooli",
				Location:            "Remote",
				ApplicationURL:      "https://www.linkedin.com/jobs/view/42",
				Source:              SourceLinkedIn,
				RequiredSkills:      []string{"Go", "SQL"},
				PostedDate:          fixedNow.Add(-DefaultPostingAge),
				PostedDateDefaulted: true,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, dropped := n.Normalize([]Raw{tc.raw}, tc.tag)
			if dropped != 0 || len(got) != 1 {
				t.Fatalf("expected a single record, got %d (dropped %d)", len(got), dropped)
			}
			if !reflect.DeepEqual(got[0], tc.expect) {
				t.Fatalf("unexpected record:\n got  %+v\n want %+v", got[0], tc.expect)
			}
		})
	}
}

func TestNormalizeDefaultsUnparseableDate(t *testing.T) {
	n := NewNormalizer(fixedClock)

	got, _ := n.Normalize([]Raw{{"title": "QA", "company": "Acme", "postedDate": "3 days ago"}}, SourceIndeed)
	if !got[0].PostedDateDefaulted {
		t.Fatal("expected defaulted posting date")
	}
	if want := fixedNow.Add(-7 * 24 * time.Hour); !got[0].PostedDate.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got[0].PostedDate)
	}
}

func TestNormalizeFlattensHTMLDescription(t *testing.T) {
	n := NewNormalizer(fixedClock)

	raw := Raw{
		"title":       "SRE",
		"company":     "Acme",
		"description": "<p>Run <b>Kubernetes</b></p><ul><li>Go</li><li>Terraform</li></ul>",
	}
	got, _ := n.Normalize([]Raw{raw}, SourceIndeed)
	if want := "Run Kubernetes Go Terraform"; got[0].Description != want {
		t.Fatalf("expected %q, got %q", want, got[0].Description)
	}
}

func TestNormalizeFallsBackToCompanyDescription(t *testing.T) {
	n := NewNormalizer(fixedClock)

	raw := Raw{
		"positionName": "SRE",
		"company":      "Acme",
		"companyInfo":  map[string]any{"companyDescription": "We build rockets."},
	}
	got, _ := n.Normalize([]Raw{raw}, SourceIndeed)
	if got[0].Description != "We build rockets." {
		t.Fatalf("unexpected description %q", got[0].Description)
	}
}

func TestContentIDIgnoresRawKeyOrderAndExtras(t *testing.T) {
	n := NewNormalizer(fixedClock)

	first, _ := n.Normalize([]Raw{{"title": "Go Dev", "company": "Acme", "location": "Berlin", "extra": 1}}, SourceOther)
	second, _ := n.Normalize([]Raw{{"location": "Berlin ", "company": "ACME", "title": "go dev"}}, SourceOther)

	if first[0].ID != second[0].ID {
		t.Fatalf("expected same content id, got %q and %q", first[0].ID, second[0].ID)
	}
}

func TestRenormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer(fixedClock)

	raws := []Raw{
		{"title": "Go Dev", "company": "Acme", "location": "Berlin", "postedDate": "2025-03-01", "skills": "Go, SQL"},
		{"positionName": "Data Engineer", "company": map[string]any{"name": "Initech"}, "description": "<p>Spark</p>"},
		{"title": "Platform Engineer", "companyName": "Hooli", "url": "https://linkedin.com/jobs/view/1", "salary": 1000},
		{"title": "Frontend Dev", "company": "Acme", "description": "<p>Build layouts with &lt;div&gt; and &lt;li&gt; elements in React.</p>"},
	}

	once, _ := n.Normalize(raws, SourceIndeed)
	if got, want := once[3].Description, "Build layouts with <div> and <li> elements in React."; got != want {
		t.Fatalf("description = %q, want %q", got, want)
	}
	twice := n.Renormalize(once)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("renormalizing changed records:\n once  %+v\n twice %+v", once, twice)
	}
}

func TestParseSource(t *testing.T) {
	cases := map[string]Source{
		"LinkedIn": SourceLinkedIn,
		" indeed ": SourceIndeed,
		"glassdoor": SourceOther,
		"":         SourceOther,
	}
	for input, want := range cases {
		if got := ParseSource(input); got != want {
			t.Fatalf("ParseSource(%q) = %q, want %q", input, got, want)
		}
	}
}
