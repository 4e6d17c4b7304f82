package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Category groups source types by how their claims are produced.
type Category string

const (
	CategoryRegulatory Category = "regulatory"
	CategoryOfficial   Category = "official"
	CategoryIndustry   Category = "industry"
	CategoryAnalysis   Category = "analysis"
	CategoryMedia      Category = "media"
	CategoryNews       Category = "news"
	CategoryRumor      Category = "rumor"
	CategoryGenerated  Category = "generated"
)

// Decays reports whether authority of this category fades with the age of
// its registration.
func (c Category) Decays() bool {
	return c != CategoryOfficial && c != CategoryRegulatory
}

// Authoritative marks official and regulatory sources.
func (c Category) Authoritative() bool {
	return !c.Decays()
}

const (
	SECFilings        = "SEC_FILINGS"
	CompanyReports    = "COMPANY_REPORTS"
	PressReleases     = "PRESS_RELEASES"
	IndustryDatabases = "INDUSTRY_DATABASES"
	AnalystReports    = "ANALYST_REPORTS"
	FinancialNews     = "FINANCIAL_NEWS"
	NewsReports       = "NEWS_REPORTS"
	SocialMedia       = "SOCIAL_MEDIA"
	UserInput         = "USER_INPUT"
	AIInference       = "AI_INFERENCE"
	CSVImport         = "CSV_IMPORT"
)

// SourceType is the fixed credibility profile of an evidence origin.
type SourceType struct {
	Name                 string   `json:"name"`
	BaseAuthority        float64  `json:"baseAuthority"`
	Reliability          float64  `json:"reliability"`
	Timeliness           float64  `json:"timeliness"`
	Category             Category `json:"category"`
	RequiresVerification bool     `json:"requiresVerification"`
}

func (s SourceType) validate() error {
	if s.Name == "" {
		return fmt.Errorf("source type without name")
	}
	for field, v := range map[string]float64{
		"baseAuthority": s.BaseAuthority,
		"reliability":   s.Reliability,
		"timeliness":    s.Timeliness,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("source type %s: %s %.2f outside [0,1]", s.Name, field, v)
		}
	}
	if s.Category == "" {
		return fmt.Errorf("source type %s: missing category", s.Name)
	}
	return nil
}

func defaultSourceTypes() []SourceType {
	return []SourceType{
		{Name: SECFilings, BaseAuthority: 0.95, Reliability: 0.98, Timeliness: 0.6, Category: CategoryRegulatory},
		{Name: CompanyReports, BaseAuthority: 0.9, Reliability: 0.9, Timeliness: 0.7, Category: CategoryOfficial},
		{Name: PressReleases, BaseAuthority: 0.85, Reliability: 0.85, Timeliness: 0.9, Category: CategoryOfficial},
		{Name: IndustryDatabases, BaseAuthority: 0.85, Reliability: 0.85, Timeliness: 0.75, Category: CategoryIndustry},
		{Name: CSVImport, BaseAuthority: 0.8, Reliability: 0.8, Timeliness: 0.5, Category: CategoryIndustry},
		{Name: AnalystReports, BaseAuthority: 0.75, Reliability: 0.75, Timeliness: 0.7, Category: CategoryAnalysis},
		{Name: FinancialNews, BaseAuthority: 0.7, Reliability: 0.7, Timeliness: 0.95, Category: CategoryMedia},
		{Name: NewsReports, BaseAuthority: 0.6, Reliability: 0.6, Timeliness: 0.95, Category: CategoryNews},
		{Name: UserInput, BaseAuthority: 0.5, Reliability: 0.5, Timeliness: 0.8, Category: CategoryGenerated, RequiresVerification: true},
		{Name: AIInference, BaseAuthority: 0.6, Reliability: 0.6, Timeliness: 1.0, Category: CategoryGenerated, RequiresVerification: true},
		{Name: SocialMedia, BaseAuthority: 0.35, Reliability: 0.3, Timeliness: 1.0, Category: CategoryRumor, RequiresVerification: true},
	}
}

// Registry is built once and read-only afterwards.
type Registry struct {
	types map[string]SourceType
}

func NewRegistry(types []SourceType) (*Registry, error) {
	r := &Registry{types: make(map[string]SourceType, len(types))}
	for _, t := range types {
		if err := t.validate(); err != nil {
			return nil, err
		}
		r.types[t.Name] = t
	}
	return r, nil
}

func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultSourceTypes())
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads a JSON array of source types and lays it over the
// defaults. Entries replace defaults of the same name.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}
	var overrides []SourceType
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse source registry %s: %w", path, err)
	}

	merged := map[string]SourceType{}
	for _, t := range defaultSourceTypes() {
		merged[t.Name] = t
	}
	for _, t := range overrides {
		merged[t.Name] = t
	}
	types := make([]SourceType, 0, len(merged))
	for _, t := range merged {
		types = append(types, t)
	}
	return NewRegistry(types)
}

func (r *Registry) Lookup(name string) (SourceType, bool) {
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
