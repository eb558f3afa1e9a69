package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type ClauseKind string

const (
	ClauseStatic   ClauseKind = "STATIC"
	ClauseToggle   ClauseKind = "TOGGLE"
	ClauseText     ClauseKind = "TEXT"
	ClauseDate     ClauseKind = "DATE"
	ClauseChip     ClauseKind = "CHIP"
	ClauseDropdown ClauseKind = "DROPDOWN"
)

type ClauseCategory string

const (
	CategoryFinancial   ClauseCategory = "FINANCIAL"
	CategoryDeadline    ClauseCategory = "DEADLINE"
	CategoryUpkeep      ClauseCategory = "UPKEEP"
	CategoryPossessions ClauseCategory = "POSSESSIONS"
)

// TextType is the scalar a TEXT clause holds.
type TextType string

const (
	TextString  TextType = "STRING"
	TextInteger TextType = "INTEGER"
)

const DateLayout = "2006-01-02"

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ClauseValue is a tagged union over the negotiable value kinds. Only the
// field matching Kind is meaningful.
type ClauseValue struct {
	Kind   ClauseKind
	Toggle bool
	Text   string
	Date   string
	Chips  []string
	Choice string
}

func ToggleValue(b bool) ClauseValue { return ClauseValue{Kind: ClauseToggle, Toggle: b} }
func TextValue(s string) ClauseValue { return ClauseValue{Kind: ClauseText, Text: s} }
func DropdownValue(s string) ClauseValue { return ClauseValue{Kind: ClauseDropdown, Choice: s} }
func DateValue(t time.Time) ClauseValue { return ClauseValue{Kind: ClauseDate, Date: t.UTC().Format(DateLayout)} }
func ChipValue(xs []string) ClauseValue { return ClauseValue{Kind: ClauseChip, Chips: append([]string{}, xs...)} }
func staticValue() ClauseValue { return ClauseValue{Kind: ClauseStatic} }

// Equal compares by kind and exact value; chips compare as ordered sequences.
func (v ClauseValue) Equal(o ClauseValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ClauseToggle:
		return v.Toggle == o.Toggle
	case ClauseText:
		return v.Text == o.Text
	case ClauseDate:
		return v.Date == o.Date
	case ClauseDropdown:
		return v.Choice == o.Choice
	case ClauseChip:
		if len(v.Chips) != len(o.Chips) {
			return false
		}
		for i := range v.Chips {
			if v.Chips[i] != o.Chips[i] {
				return false
			}
		}
		return true
	case ClauseStatic:
		return true
	}
	return false
}

// Plain returns the payload as a JSON-friendly value.
func (v ClauseValue) Plain() any {
	switch v.Kind {
	case ClauseToggle:
		return v.Toggle
	case ClauseText:
		return v.Text
	case ClauseDate:
		return v.Date
	case ClauseDropdown:
		return v.Choice
	case ClauseChip:
		if v.Chips == nil {
			return []string{}
		}
		return v.Chips
	}
	return nil
}

func (v ClauseValue) Display() string {
	switch v.Kind {
	case ClauseToggle:
		if v.Toggle {
			return "yes"
		}
		return "no"
	case ClauseChip:
		return strings.Join(v.Chips, ", ")
	case ClauseStatic:
		return ""
	}
	return fmt.Sprint(v.Plain())
}

type clauseValueWire struct {
	Kind  ClauseKind      `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v ClauseValue) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(v.Plain())
	if err != nil {
		return nil, err
	}
	return json.Marshal(clauseValueWire{Kind: v.Kind, Value: b})
}

func (v *ClauseValue) UnmarshalJSON(b []byte) error {
	var w clauseValueWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := ClauseValue{Kind: w.Kind}
	if len(w.Value) > 0 && string(w.Value) != "null" {
		var err error
		switch w.Kind {
		case ClauseToggle:
			err = json.Unmarshal(w.Value, &out.Toggle)
		case ClauseText:
			err = json.Unmarshal(w.Value, &out.Text)
		case ClauseDate:
			err = json.Unmarshal(w.Value, &out.Date)
		case ClauseDropdown:
			err = json.Unmarshal(w.Value, &out.Choice)
		case ClauseChip:
			err = json.Unmarshal(w.Value, &out.Chips)
		}
		if err != nil {
			return err
		}
	}
	if out.Kind == ClauseChip && out.Chips == nil {
		out.Chips = []string{}
	}
	*v = out
	return nil
}

type Clause struct {
	ClauseID    string         `json:"clause_id"`
	ContractID  string         `json:"contract_id"`
	Key         string         `json:"key"`
	Title       string         `json:"title"`
	Kind        ClauseKind     `json:"kind"`
	Category    ClauseCategory `json:"category,omitempty"`
	Prompt      string         `json:"prompt,omitempty"`
	Explanation string         `json:"explanation"`
	Preview     string         `json:"preview"`
	Required    bool           `json:"required"`
	TextType    TextType       `json:"text_type,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Value       ClauseValue    `json:"value"`
}

func (c Clause) IsDynamic() bool { return c.Kind != ClauseStatic }

// RenderPreview fills the clause's preview template with its current value.
func (c Clause) RenderPreview() string {
	if !c.IsDynamic() {
		return c.Preview
	}
	return strings.ReplaceAll(c.Preview, "{value}", c.Value.Display())
}

// NormalizeValue validates raw against the clause's kind and declared
// constraints and returns the canonical value. Static clauses reject every
// value.
func (c Clause) NormalizeValue(raw any) (ClauseValue, error) {
	switch c.Kind {
	case ClauseStatic:
		return ClauseValue{}, Validationf("clause %q is static and cannot be changed", c.Title)

	case ClauseToggle:
		b, ok := raw.(bool)
		if !ok {
			return ClauseValue{}, c.invalid("expected a boolean")
		}
		return ToggleValue(b), nil

	case ClauseText:
		s, err := c.normalizeText(raw)
		if err != nil {
			return ClauseValue{}, err
		}
		return TextValue(s), nil

	case ClauseDate:
		switch d := raw.(type) {
		case time.Time:
			return DateValue(d), nil
		case string:
			d = strings.TrimSpace(d)
			if !reISODate.MatchString(d) {
				return ClauseValue{}, c.invalid("date must be YYYY-MM-DD")
			}
			t, err := time.Parse(DateLayout, d)
			if err != nil {
				return ClauseValue{}, c.invalid("invalid date")
			}
			return DateValue(t), nil
		}
		return ClauseValue{}, c.invalid("expected a calendar date")

	case ClauseChip:
		var items []string
		switch xs := raw.(type) {
		case []string:
			items = xs
		case []any:
			for _, x := range xs {
				s, ok := x.(string)
				if !ok {
					return ClauseValue{}, c.invalid("expected a list of strings")
				}
				items = append(items, s)
			}
		case nil:
		default:
			return ClauseValue{}, c.invalid("expected a list of strings")
		}
		out := make([]string, 0, len(items))
		for _, s := range items {
			s = strings.TrimSpace(s)
			if s == "" {
				return ClauseValue{}, c.invalid("list entries must not be empty")
			}
			out = append(out, s)
		}
		return ChipValue(out), nil

	case ClauseDropdown:
		s, ok := raw.(string)
		if !ok {
			return ClauseValue{}, c.invalid("expected one of the listed options")
		}
		for _, opt := range c.Options {
			if s == opt {
				return DropdownValue(s), nil
			}
		}
		return ClauseValue{}, c.invalid(fmt.Sprintf("value %q is not one of %s", s, strings.Join(c.Options, ", ")))
	}
	return ClauseValue{}, c.invalid("unsupported clause kind")
}

func (c Clause) normalizeText(raw any) (string, error) {
	if c.TextType != TextInteger {
		s, ok := raw.(string)
		if !ok {
			return "", c.invalid("expected text")
		}
		return strings.TrimSpace(s), nil
	}
	var n int64
	switch x := raw.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return "", c.invalid("expected a whole number")
		}
		n = int64(x)
	case json.Number:
		v, err := strconv.ParseInt(x.String(), 10, 64)
		if err != nil {
			return "", c.invalid("expected a whole number")
		}
		n = v
	case string:
		v, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return "", c.invalid("expected a whole number")
		}
		n = v
	default:
		return "", c.invalid("expected a whole number")
	}
	if n < 0 {
		return "", c.invalid("must be >= 0")
	}
	return strconv.FormatInt(n, 10), nil
}

func (c Clause) invalid(reason string) error {
	return Validationf("clause %q (%s) invalid: %s", c.Title, c.Kind, reason)
}
