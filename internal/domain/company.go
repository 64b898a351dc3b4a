package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical column names for every tracked field. The CIN is the identifier
// column; everything else is descriptive and compared between snapshots.
const (
	FieldCIN                      = "cin"
	FieldCompanyName              = "company_name"
	FieldROCCode                  = "roc_code"
	FieldCategory                 = "category"
	FieldSubCategory              = "sub_category"
	FieldClass                    = "class"
	FieldAuthorizedCapital        = "authorized_capital"
	FieldPaidUpCapital            = "paidup_capital"
	FieldRegistrationDate         = "registration_date"
	FieldRegisteredOfficeAddress  = "registered_office_address"
	FieldListingStatus            = "listing_status"
	FieldCompanyStatus            = "company_status"
	FieldStateCode                = "state_code"
	FieldCompanyType              = "company_type"
	FieldNICCode                  = "nic_code"
	FieldIndustrialClassification = "industrial_classification"
)

// DateLayout is the calendar-day format used for capture dates, registration
// dates, and snapshot file names.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02/01/2006",
	time.RFC3339,
}

// Company is one corporate registry record. Values are plain data; the CIN is
// immutable once assigned and unique within a snapshot.
type Company struct {
	CIN                      string
	CompanyName              string
	ROCCode                  string
	Category                 string
	SubCategory              string
	Class                    string
	AuthorizedCapital        decimal.NullDecimal
	PaidUpCapital            decimal.NullDecimal
	RegistrationDate         *time.Time
	RegisteredOfficeAddress  string
	ListingStatus            string
	CompanyStatus            string
	StateCode                string
	CompanyType              string
	NICCode                  string
	IndustrialClassification string
}

// FieldNames returns every tracked column in canonical order, identifier
// first. Snapshot files use exactly this header.
func FieldNames() []string {
	return []string{
		FieldCIN,
		FieldCompanyName,
		FieldROCCode,
		FieldCategory,
		FieldSubCategory,
		FieldClass,
		FieldAuthorizedCapital,
		FieldPaidUpCapital,
		FieldRegistrationDate,
		FieldRegisteredOfficeAddress,
		FieldListingStatus,
		FieldCompanyStatus,
		FieldStateCode,
		FieldCompanyType,
		FieldNICCode,
		FieldIndustrialClassification,
	}
}

// ComparableFields returns the columns compared between snapshots, in the
// canonical order used for changed-field reporting. The identifier is
// excluded; it is the join key, never a diffable value.
func ComparableFields() []string {
	return FieldNames()[1:]
}

// NormalizeCIN canonicalizes an identifier for lookups and set membership.
// Registration numbers are case-insensitive in source data.
func NormalizeCIN(cin string) string {
	return strings.ToUpper(strings.TrimSpace(cin))
}

// FieldValue returns the normalized display value for a named field and
// whether the field is present. String fields are trimmed but keep their
// case and internal formatting; decimals render exact values with no
// trailing zeros; dates render as calendar days.
func (c Company) FieldValue(name string) (string, bool) {
	switch name {
	case FieldCIN:
		return presentString(c.CIN)
	case FieldCompanyName:
		return presentString(c.CompanyName)
	case FieldROCCode:
		return presentString(c.ROCCode)
	case FieldCategory:
		return presentString(c.Category)
	case FieldSubCategory:
		return presentString(c.SubCategory)
	case FieldClass:
		return presentString(c.Class)
	case FieldAuthorizedCapital:
		return presentDecimal(c.AuthorizedCapital)
	case FieldPaidUpCapital:
		return presentDecimal(c.PaidUpCapital)
	case FieldRegistrationDate:
		if c.RegistrationDate == nil {
			return "", false
		}
		return c.RegistrationDate.Format(DateLayout), true
	case FieldRegisteredOfficeAddress:
		return presentString(c.RegisteredOfficeAddress)
	case FieldListingStatus:
		return presentString(c.ListingStatus)
	case FieldCompanyStatus:
		return presentString(c.CompanyStatus)
	case FieldStateCode:
		return presentString(c.StateCode)
	case FieldCompanyType:
		return presentString(c.CompanyType)
	case FieldNICCode:
		return presentString(c.NICCode)
	case FieldIndustrialClassification:
		return presentString(c.IndustrialClassification)
	default:
		return "", false
	}
}

// Values returns the full set of present field values keyed by column name.
// Used as the payload for NEW and DELETED change records.
func (c Company) Values() map[string]string {
	values := make(map[string]string)
	for _, name := range FieldNames() {
		if value, ok := c.FieldValue(name); ok {
			values[name] = value
		}
	}
	return values
}

// CompanyFromRow builds a typed record from raw column values keyed by
// canonical field name. Values are validated and rejected on error rather
// than silently coerced.
func CompanyFromRow(values map[string]string) (Company, error) {
	company := Company{
		CIN:                      NormalizeCIN(values[FieldCIN]),
		CompanyName:              strings.TrimSpace(values[FieldCompanyName]),
		ROCCode:                  strings.TrimSpace(values[FieldROCCode]),
		Category:                 strings.TrimSpace(values[FieldCategory]),
		SubCategory:              strings.TrimSpace(values[FieldSubCategory]),
		Class:                    strings.TrimSpace(values[FieldClass]),
		RegisteredOfficeAddress:  strings.TrimSpace(values[FieldRegisteredOfficeAddress]),
		ListingStatus:            strings.TrimSpace(values[FieldListingStatus]),
		CompanyStatus:            strings.TrimSpace(values[FieldCompanyStatus]),
		StateCode:                strings.TrimSpace(values[FieldStateCode]),
		CompanyType:              strings.TrimSpace(values[FieldCompanyType]),
		NICCode:                  strings.TrimSpace(values[FieldNICCode]),
		IndustrialClassification: strings.TrimSpace(values[FieldIndustrialClassification]),
	}

	if company.CIN == "" {
		return Company{}, ErrMissingIdentifier
	}

	authorized, err := parseNullDecimal(values[FieldAuthorizedCapital])
	if err != nil {
		return Company{}, fmt.Errorf("field %s: %w", FieldAuthorizedCapital, err)
	}
	company.AuthorizedCapital = authorized

	paidUp, err := parseNullDecimal(values[FieldPaidUpCapital])
	if err != nil {
		return Company{}, fmt.Errorf("field %s: %w", FieldPaidUpCapital, err)
	}
	company.PaidUpCapital = paidUp

	registration, err := parseDate(values[FieldRegistrationDate])
	if err != nil {
		return Company{}, fmt.Errorf("field %s: %w", FieldRegistrationDate, err)
	}
	company.RegistrationDate = registration

	return company, nil
}

func presentString(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	return trimmed, trimmed != ""
}

func presentDecimal(value decimal.NullDecimal) (string, bool) {
	if !value.Valid {
		return "", false
	}
	return value.Decimal.String(), true
}

func parseNullDecimal(raw string) (decimal.NullDecimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.NullDecimal{}, nil
	}

	// Source extracts render capital figures with thousands separators.
	trimmed = strings.ReplaceAll(trimmed, ",", "")

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid decimal %q", raw)
	}
	return decimal.NullDecimal{Decimal: value, Valid: true}, nil
}

func parseDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			day := DateOnly(parsed)
			return &day, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}

// DateOnly truncates a timestamp to its UTC calendar day. Capture dates and
// change dates are always day-granular.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
