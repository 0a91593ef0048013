package models

import (
	"fmt"
	"strings"
)

// Draft field identifiers. The set is closed: anything outside this list is
// rejected at the API boundary and by copilot field-update actions.
const (
	FieldRoleTitle      = "roleTitle"
	FieldCompanyName    = "companyName"
	FieldLogoURL        = "logoUrl"
	FieldLocation       = "location"
	FieldZipCode        = "zipCode"
	FieldIndustry       = "industry"
	FieldSeniorityLevel = "seniorityLevel"
	FieldEmploymentType = "employmentType"
	FieldWorkModel      = "workModel"
	FieldJobDescription = "jobDescription"
	FieldSalary         = "salary"
	FieldSalaryPeriod   = "salaryPeriod"
	FieldCurrency       = "currency"
	FieldCoreDuties     = "coreDuties"
	FieldMustHaves      = "mustHaves"
	FieldBenefits       = "benefits"
)

// ScalarFieldIDs lists the scalar draft fields in canonical order.
var ScalarFieldIDs = []string{
	FieldRoleTitle, FieldCompanyName, FieldLogoURL, FieldLocation,
	FieldZipCode, FieldIndustry, FieldSeniorityLevel, FieldEmploymentType,
	FieldWorkModel, FieldJobDescription, FieldSalary, FieldSalaryPeriod,
	FieldCurrency,
}

// ListFieldIDs lists the list-of-string draft fields in canonical order.
var ListFieldIDs = []string{FieldCoreDuties, FieldMustHaves, FieldBenefits}

// RequiredFieldIDs is the minimum set a draft needs before it can be refined.
var RequiredFieldIDs = []string{
	FieldRoleTitle, FieldCompanyName, FieldLocation,
	FieldSeniorityLevel, FieldEmploymentType, FieldJobDescription,
}

// Draft is the user-supplied job record. Scalar fields hold trimmed strings
// where empty means absent; list fields hold trimmed non-empty entries in
// the order they were entered.
type Draft struct {
	RoleTitle      string `json:"roleTitle,omitempty"`
	CompanyName    string `json:"companyName,omitempty"`
	LogoURL        string `json:"logoUrl,omitempty"`
	Location       string `json:"location,omitempty"`
	ZipCode        string `json:"zipCode,omitempty"`
	Industry       string `json:"industry,omitempty"`
	SeniorityLevel string `json:"seniorityLevel,omitempty"`
	EmploymentType string `json:"employmentType,omitempty"`
	WorkModel      string `json:"workModel,omitempty"`
	JobDescription string `json:"jobDescription,omitempty"`
	Salary         string `json:"salary,omitempty"`
	SalaryPeriod   string `json:"salaryPeriod,omitempty"`
	Currency       string `json:"currency,omitempty"`

	CoreDuties []string `json:"coreDuties,omitempty"`
	MustHaves  []string `json:"mustHaves,omitempty"`
	Benefits   []string `json:"benefits,omitempty"`
}

// IsScalarField reports whether id names a scalar draft field.
func IsScalarField(id string) bool {
	for _, f := range ScalarFieldIDs {
		if f == id {
			return true
		}
	}
	return false
}

// IsListField reports whether id names a list draft field.
func IsListField(id string) bool {
	for _, f := range ListFieldIDs {
		if f == id {
			return true
		}
	}
	return false
}

// IsDraftField reports whether id belongs to the closed draft field catalog.
func IsDraftField(id string) bool {
	return IsScalarField(id) || IsListField(id)
}

// scalarRef returns a pointer to the scalar field named by id, or nil.
func (d *Draft) scalarRef(id string) *string {
	switch id {
	case FieldRoleTitle:
		return &d.RoleTitle
	case FieldCompanyName:
		return &d.CompanyName
	case FieldLogoURL:
		return &d.LogoURL
	case FieldLocation:
		return &d.Location
	case FieldZipCode:
		return &d.ZipCode
	case FieldIndustry:
		return &d.Industry
	case FieldSeniorityLevel:
		return &d.SeniorityLevel
	case FieldEmploymentType:
		return &d.EmploymentType
	case FieldWorkModel:
		return &d.WorkModel
	case FieldJobDescription:
		return &d.JobDescription
	case FieldSalary:
		return &d.Salary
	case FieldSalaryPeriod:
		return &d.SalaryPeriod
	case FieldCurrency:
		return &d.Currency
	}
	return nil
}

// listRef returns a pointer to the list field named by id, or nil.
func (d *Draft) listRef(id string) *[]string {
	switch id {
	case FieldCoreDuties:
		return &d.CoreDuties
	case FieldMustHaves:
		return &d.MustHaves
	case FieldBenefits:
		return &d.Benefits
	}
	return nil
}

// Field returns the value of the named field as a string (scalars) or
// []string (lists). The second return is false for unknown field ids.
func (d *Draft) Field(id string) (interface{}, bool) {
	if ref := d.scalarRef(id); ref != nil {
		return *ref, true
	}
	if ref := d.listRef(id); ref != nil {
		return *ref, true
	}
	return nil, false
}

// SetField assigns a value to the named field. Scalar fields accept strings;
// list fields accept []string, []interface{} of strings, or a single string
// (treated as a one-element list). Values are normalized on assignment.
func (d *Draft) SetField(id string, value interface{}) error {
	if ref := d.scalarRef(id); ref != nil {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s expects a string value", id)
		}
		s = strings.TrimSpace(s)
		if id == FieldLogoURL && s != "" && !IsValidLogoURL(s) {
			return fmt.Errorf("field %s must be an absolute URL or data: URL", id)
		}
		*ref = s
		return nil
	}
	if ref := d.listRef(id); ref != nil {
		items, err := coerceStringList(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", id, err)
		}
		*ref = normalizeList(items)
		return nil
	}
	return fmt.Errorf("unknown draft field: %s", id)
}

// coerceStringList converts the accepted list-value shapes into []string.
func coerceStringList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("list entries must be strings")
			}
			items = append(items, s)
		}
		return items, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("expects a list of strings")
	}
}

// normalizeList trims entries and drops empties while preserving order.
func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalize trims all scalar fields and normalizes all list fields in place.
func (d *Draft) Normalize() {
	for _, id := range ScalarFieldIDs {
		ref := d.scalarRef(id)
		*ref = strings.TrimSpace(*ref)
	}
	for _, id := range ListFieldIDs {
		ref := d.listRef(id)
		*ref = normalizeList(*ref)
	}
}

// MissingRequired returns the required field ids that are still empty.
func (d *Draft) MissingRequired() []string {
	var missing []string
	for _, id := range RequiredFieldIDs {
		ref := d.scalarRef(id)
		if strings.TrimSpace(*ref) == "" {
			missing = append(missing, id)
		}
	}
	return missing
}

// IsRefinable reports whether the draft carries every required field.
func (d *Draft) IsRefinable() bool {
	return len(d.MissingRequired()) == 0
}

// EmptyFieldIDs returns the field ids that currently have no value. Used by
// the suggest task, which only proposes values for empty or visible fields.
func (d *Draft) EmptyFieldIDs() []string {
	var empty []string
	for _, id := range ScalarFieldIDs {
		if strings.TrimSpace(*d.scalarRef(id)) == "" {
			empty = append(empty, id)
		}
	}
	for _, id := range ListFieldIDs {
		if len(*d.listRef(id)) == 0 {
			empty = append(empty, id)
		}
	}
	return empty
}

// Merge applies the non-empty fields of patch onto d. Scalars merge
// individually; list fields replace the whole list when present in patch.
func (d *Draft) Merge(patch *Draft) {
	if patch == nil {
		return
	}
	for _, id := range ScalarFieldIDs {
		src := patch.scalarRef(id)
		if strings.TrimSpace(*src) != "" {
			*d.scalarRef(id) = strings.TrimSpace(*src)
		}
	}
	for _, id := range ListFieldIDs {
		src := patch.listRef(id)
		if len(*src) > 0 {
			*d.listRef(id) = normalizeList(*src)
		}
	}
}

// Clone returns a deep copy of the draft.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.CoreDuties = append([]string(nil), d.CoreDuties...)
	c.MustHaves = append([]string(nil), d.MustHaves...)
	c.Benefits = append([]string(nil), d.Benefits...)
	return &c
}

// IsValidLogoURL accepts absolute http(s) URLs and data: URLs.
func IsValidLogoURL(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:")
}
