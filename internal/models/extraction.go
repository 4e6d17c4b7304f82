package models

// Category is an entity span category produced by the extractor.
type Category string

const (
	CategoryCompany   Category = "company"
	CategoryPerson    Category = "person"
	CategoryAmount    Category = "amount"
	CategoryTimeframe Category = "timeframe"
	CategorySector    Category = "sector"
	CategoryGeography Category = "geography"
	CategoryMetric    Category = "metric"
)

// Categories in extraction order.
var Categories = []Category{
	CategoryCompany,
	CategoryPerson,
	CategoryAmount,
	CategoryTimeframe,
	CategorySector,
	CategoryGeography,
	CategoryMetric,
}

// Span is one extracted match.
type Span struct {
	Text       string  `json:"text"`
	Offset     int     `json:"offset"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEntities groups spans by category. Confidence is the number of
// categories with a match divided by the number of patterns attempted.
type ExtractedEntities struct {
	Companies   []Span  `json:"companies"`
	Persons     []Span  `json:"persons"`
	Amounts     []Span  `json:"amounts"`
	Timeframes  []Span  `json:"timeframes"`
	Sectors     []Span  `json:"sectors"`
	Geographies []Span  `json:"geographies"`
	Metrics     []Span  `json:"metrics"`
	Confidence  float64 `json:"confidence"`
}

func (e *ExtractedEntities) Get(c Category) []Span {
	switch c {
	case CategoryCompany:
		return e.Companies
	case CategoryPerson:
		return e.Persons
	case CategoryAmount:
		return e.Amounts
	case CategoryTimeframe:
		return e.Timeframes
	case CategorySector:
		return e.Sectors
	case CategoryGeography:
		return e.Geographies
	case CategoryMetric:
		return e.Metrics
	default:
		return nil
	}
}

func (e *ExtractedEntities) Set(c Category, spans []Span) {
	switch c {
	case CategoryCompany:
		e.Companies = spans
	case CategoryPerson:
		e.Persons = spans
	case CategoryAmount:
		e.Amounts = spans
	case CategoryTimeframe:
		e.Timeframes = spans
	case CategorySector:
		e.Sectors = spans
	case CategoryGeography:
		e.Geographies = spans
	case CategoryMetric:
		e.Metrics = spans
	}
}

// Texts returns the matched text of every span in c, in match order.
func (e *ExtractedEntities) Texts(c Category) []string {
	spans := e.Get(c)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

// Named returns company and person texts, companies first.
func (e *ExtractedEntities) Named() []string {
	return append(e.Texts(CategoryCompany), e.Texts(CategoryPerson)...)
}

func (e *ExtractedEntities) Count() int {
	n := 0
	for _, c := range Categories {
		n += len(e.Get(c))
	}
	return n
}
