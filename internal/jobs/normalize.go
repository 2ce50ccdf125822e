package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/mapstructure"
)

// Canonical raw keys, tried first for every source.
const (
	keyID                  = "job_id"
	keyTitle               = "title"
	keyCompany             = "company"
	keyLocation            = "location"
	keyDescription         = "description"
	keyApplicationURL      = "application_url"
	keySource              = "source"
	keyPostedDate          = "posted_date"
	keyPostedDateDefaulted = "posted_date_defaulted"
	keyRequiredSkills      = "required_skills"
	keySalaryInfo          = "salary_info"
)

// DefaultPostingAge is substituted for a missing or unparseable posting date.
const DefaultPostingAge = 7 * 24 * time.Hour

type field int

const (
	fieldID field = iota
	fieldTitle
	fieldCompany
	fieldLocation
	fieldDescription
	fieldApplicationURL
	fieldPostedDate
	fieldRequiredSkills
	fieldSalaryInfo
)

type aliasTable map[field][]string

var commonAliases = aliasTable{
	fieldID:             {keyID, "id", "jobId", "jobKey"},
	fieldTitle:          {keyTitle, "positionName", "name"},
	fieldCompany:        {keyCompany, "companyName"},
	fieldLocation:       {keyLocation, "place", "formattedLocation"},
	fieldDescription:    {keyDescription, "jobDescription", "descriptionText"},
	fieldApplicationURL: {keyApplicationURL, "url", "link", "applicationLink", "applyUrl"},
	fieldPostedDate:     {keyPostedDate, "postedDate", "date", "listedAt", "postedAt", "publishedAt"},
	fieldRequiredSkills: {keyRequiredSkills, "requiredSkills", "skills", "keySkills"},
	fieldSalaryInfo:     {keySalaryInfo, "salary", "salaryInfo", "salaryRange"},
}

// sourceAliases overrides the common table where a source has its own
// primary key for a field.
var sourceAliases = map[Source]aliasTable{
	SourceLinkedIn: {
		fieldApplicationURL: {keyApplicationURL, "applyUrl", "applicationUrl", "jobUrl", "url", "link"},
	},
	SourceIndeed: {
		fieldApplicationURL: {keyApplicationURL, "applicationLink", "apply_url", "url", "link"},
	},
}

var linkedInHosts = []string{"linkedin.com", "lnkd.in"}

// Normalizer maps raw records from any source into canonical Records.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer using clock for defaulted posting dates.
func NewNormalizer(clock func() time.Time) *Normalizer {
	if clock == nil {
		clock = time.Now
	}
	return &Normalizer{now: clock}
}

// Normalize converts raws received with the given source tag. Records without
// a title or company are dropped and counted.
func (n *Normalizer) Normalize(raws []Raw, tag Source) (Records, int) {
	out := make(Records, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		record, ok := n.normalizeOne(raw, tag, cleanDescription)
		if !ok {
			dropped++
			continue
		}
		out = append(out, record)
	}
	return out, dropped
}

// Renormalize runs already-normalized records through the normalizer again,
// each under its own source. Descriptions are plain text at this point and
// are not parsed as HTML a second time.
func (n *Normalizer) Renormalize(records Records) Records {
	out := make(Records, 0, len(records))
	for _, record := range records {
		if normalized, ok := n.normalizeOne(record.Raw(), record.Source, cleanText); ok {
			out = append(out, normalized)
		}
	}
	return out
}

func (n *Normalizer) normalizeOne(raw Raw, tag Source, description func(string) string) (Record, bool) {
	if raw == nil {
		return Record{}, false
	}

	aliases := aliasesFor(tag)
	record := Record{
		Title:          cleanText(lookupString(raw, aliases[fieldTitle])),
		Company:        cleanText(lookupString(raw, aliases[fieldCompany])),
		Location:       cleanText(lookupString(raw, aliases[fieldLocation])),
		Description:    description(lookupString(raw, aliases[fieldDescription])),
		ApplicationURL: strings.TrimSpace(lookupString(raw, aliases[fieldApplicationURL])),
		RequiredSkills: lookupSkills(raw, aliases[fieldRequiredSkills]),
		SalaryInfo:     cleanText(lookupString(raw, aliases[fieldSalaryInfo])),
	}

	if record.Title == "" || record.Company == "" {
		return Record{}, false
	}

	if record.Description == "" {
		record.Description = description(nestedString(raw, "companyInfo", "companyDescription"))
	}

	record.Source = inferSource(raw, aliases[fieldApplicationURL], tag)
	record.PostedDate, record.PostedDateDefaulted = n.postedDate(raw, aliases[fieldPostedDate])

	record.ID = strings.TrimSpace(lookupString(raw, aliases[fieldID]))
	if record.ID == "" {
		record.ID = ContentID(record)
	}

	return record, true
}

func (n *Normalizer) postedDate(raw Raw, keys []string) (time.Time, bool) {
	if parsed, ok := parseISODate(lookupString(raw, keys)); ok {
		defaulted, _ := raw[keyPostedDateDefaulted].(bool)
		return parsed, defaulted
	}
	return n.now().Add(-DefaultPostingAge).UTC(), true
}

// ContentID derives a stable id from a fixed, ordered subset of normalized
// fields so that key order or extra raw fields never change it.
func ContentID(r Record) string {
	parts := []string{r.Title, r.Company, r.Location, r.ApplicationURL}
	for i, part := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(part))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "h-" + hex.EncodeToString(sum[:8])
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.DateOnly,
}

func parseISODate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func aliasesFor(tag Source) aliasTable {
	table := make(aliasTable, len(commonAliases))
	for f, keys := range commonAliases {
		table[f] = keys
	}
	for f, keys := range sourceAliases[tag] {
		table[f] = keys
	}
	return table
}

func inferSource(raw Raw, urlKeys []string, tag Source) Source {
	for _, key := range urlKeys {
		value := strings.ToLower(toString(raw[key]))
		for _, host := range linkedInHosts {
			if strings.Contains(value, host) {
				return SourceLinkedIn
			}
		}
	}
	if tag == "" {
		return SourceOther
	}
	return tag
}

func lookupString(raw Raw, keys []string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if s := strings.TrimSpace(toString(value)); s != "" {
			return s
		}
	}
	return ""
}

func nestedString(raw Raw, outer, inner string) string {
	nested, ok := raw[outer].(map[string]any)
	if !ok {
		return ""
	}
	return toString(nested[inner])
}

func lookupSkills(raw Raw, keys []string) []string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if skills := toSkills(value); len(skills) > 0 {
			return skills
		}
	}
	return []string{}
}

func toSkills(value any) []string {
	var items []string
	switch typed := value.(type) {
	case string:
		items = strings.Split(typed, ",")
	case []string:
		items = typed
	case []any:
		for _, item := range typed {
			items = append(items, toString(item))
		}
	default:
		items = []string{toString(value)}
	}

	seen := make(map[string]bool, len(items))
	skills := make([]string, 0, len(items))
	for _, item := range items {
		item = cleanText(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		skills = append(skills, item)
	}
	return skills
}

// toString weakly decodes scalars and picks "name" out of nested objects
// such as {"company": {"name": "Acme"}}.
func toString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case map[string]any:
		return toString(typed["name"])
	}

	var s string
	if err := mapstructure.WeakDecode(value, &s); err != nil {
		return ""
	}
	return s
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func cleanDescription(s string) string {
	if looksLikeHTML(s) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("br, p, li, div").Each(func(_ int, sel *goquery.Selection) {
				sel.AppendHtml(" ")
			})
			s = doc.Text()
		}
	}
	return cleanText(s)
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	for _, tag := range []string{"<p", "<br", "<div", "<li", "<ul", "<span", "<strong", "<b>", "</"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}
