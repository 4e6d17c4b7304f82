package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityType tags a graph node.
type EntityType string

const (
	EntityCompany     EntityType = "Company"
	EntityFund        EntityType = "Fund"
	EntityInvestor    EntityType = "Investor"
	EntityPerson      EntityType = "Person"
	EntityProject     EntityType = "Project"
	EntityTransaction EntityType = "Transaction"
)

// KnownEntityTypes are valid as graph labels.
var KnownEntityTypes = []EntityType{
	EntityCompany, EntityFund, EntityInvestor, EntityPerson, EntityProject, EntityTransaction,
}

func (t EntityType) Valid() bool {
	for _, k := range KnownEntityTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ParseEntityType matches case-insensitively against the known types.
func ParseEntityType(s string) (EntityType, bool) {
	for _, k := range KnownEntityTypes {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, true
		}
	}
	return "", false
}

// Attribute keys read by the synthesizer, inference engine and ingest.
const (
	AttrSector          = "sector"           // string: similarity, sector alignment, discovery
	AttrCountry         = "country"          // string: similarity, geographic clustering, discovery
	AttrCity            = "city"             // string: display only
	AttrFoundedYear     = "founded_year"     // number: entity info
	AttrTotalInvestment = "total_investment" // number: performance ranking, discovery amount filter
	AttrAUM             = "aum"              // number: performance ranking fallback
	AttrIRR             = "irr"              // number: performance metrics
	AttrMOIC            = "moic"             // number: performance metrics
	AttrValuation       = "valuation"        // number: comparison
	AttrStage           = "stage"            // string: display only
	AttrAliases         = "aliases"          // list: search suggestions
)

// AttributeKind is the closed set of attribute value shapes.
type AttributeKind int

const (
	KindString AttributeKind = iota
	KindNumber
	KindDate
	KindList
)

func (k AttributeKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// AttributeValue is a string, number, date or list of primitives.
type AttributeValue struct {
	Kind AttributeKind
	Str  string
	Num  float64
	Date time.Time
	List []AttributeValue
}

func StringValue(s string) AttributeValue { return AttributeValue{Kind: KindString, Str: s} }
func NumberValue(n float64) AttributeValue { return AttributeValue{Kind: KindNumber, Num: n} }
func DateValue(t time.Time) AttributeValue { return AttributeValue{Kind: KindDate, Date: t.UTC()} }

// ListValue drops nested lists; lists hold primitives only.
func ListValue(items ...AttributeValue) AttributeValue {
	out := make([]AttributeValue, 0, len(items))
	for _, it := range items {
		if it.Kind == KindList {
			continue
		}
		out = append(out, it)
	}
	return AttributeValue{Kind: KindList, List: out}
}

// Native returns a value suitable for a driver parameter.
func (v AttributeValue) Native() interface{} {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindDate:
		return v.Date.Format(time.RFC3339)
	case KindList:
		out := make([]interface{}, len(v.List))
		for i, it := range v.List {
			out[i] = it.Native()
		}
		return out
	default:
		return v.Str
	}
}

func (v AttributeValue) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Date.Format("2006-01-02")
	case KindList:
		parts := make([]string, len(v.List))
		for i, it := range v.List {
			parts[i] = it.String()
		}
		return strings.Join(parts, ";")
	default:
		return v.Str
	}
}

// AsNumber reports the numeric value of number attributes and numeric strings.
func (v AttributeValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// AttributeFromAny converts a driver or JSON value into an attribute.
func AttributeFromAny(raw interface{}) (AttributeValue, bool) {
	switch x := raw.(type) {
	case nil:
		return AttributeValue{}, false
	case string:
		return StringValue(x), true
	case bool:
		return StringValue(strconv.FormatBool(x)), true
	case int:
		return NumberValue(float64(x)), true
	case int32:
		return NumberValue(float64(x)), true
	case int64:
		return NumberValue(float64(x)), true
	case float32:
		return NumberValue(float64(x)), true
	case float64:
		return NumberValue(x), true
	case time.Time:
		return DateValue(x), true
	case []string:
		items := make([]AttributeValue, len(x))
		for i, s := range x {
			items[i] = StringValue(s)
		}
		return ListValue(items...), true
	case []interface{}:
		items := make([]AttributeValue, 0, len(x))
		for _, it := range x {
			if av, ok := AttributeFromAny(it); ok && av.Kind != KindList {
				items = append(items, av)
			}
		}
		return ListValue(items...), true
	case fmt.Stringer:
		return StringValue(x.String()), true
	default:
		return StringValue(fmt.Sprint(x)), true
	}
}

// Attributes is the typed property bag of an entity.
type Attributes map[string]AttributeValue

func (a Attributes) Text(key string) string {
	if v, ok := a[key]; ok {
		return v.String()
	}
	return ""
}

func (a Attributes) Number(key string) (float64, bool) {
	if v, ok := a[key]; ok {
		return v.AsNumber()
	}
	return 0, false
}

// Native flattens attributes into driver parameters.
func (a Attributes) Native() map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v.Native()
	}
	return out
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Native())
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Attributes, len(raw))
	for k, v := range raw {
		if av, ok := AttributeFromAny(v); ok {
			out[k] = av
		}
	}
	*a = out
	return nil
}

// Entity is a node in the knowledge graph. ID is immutable once created.
type Entity struct {
	ID         string     `json:"id"`
	Type       EntityType `json:"type"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes,omitempty"`
}

// Merge applies non-empty attributes from other, keeping identity.
func (e *Entity) Merge(other Entity) {
	if other.Name != "" {
		e.Name = other.Name
	}
	if e.Attributes == nil {
		e.Attributes = make(Attributes, len(other.Attributes))
	}
	for k, v := range other.Attributes {
		e.Attributes[k] = v
	}
}
