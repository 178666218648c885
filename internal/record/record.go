// Package record defines the canonical record model shared by the
// normalizer, the dedupe stage and the snapshot exporter.
//
// A Record is a flat mapping from canonical field name to scalar value
// with a stable field order per record type. Every record carries
// issuer_code, snapshot_date and evidence_url for auditability. Records
// are immutable once emitted to the pipeline: a changed record produces
// a new row in the next snapshot, never a mutation of history.
package record

import (
	"strconv"
	"strings"
)

// Type tags the schema a record conforms to. Routing from tag to output
// file is an explicit table (see FileName); routing intent is never
// smuggled as a mutable field on the record itself.
type Type string

const (
	TypeIssuer                Type = "Issuer"
	TypeSecurity              Type = "Security"
	TypeCompanyDetail         Type = "CompanyDetail"
	TypeTopShareholder        Type = "TopShareholder"
	TypeJoinedCompanySecurity Type = "JoinedCompanySecurity"
	TypeBSECompany            Type = "BSECompany"
)

// Locale distinguishes the CN and EN issuer listings, which are exported
// to separate files.
type Locale string

const (
	LocaleCN Locale = "cn"
	LocaleEN Locale = "en"
)

// Record is one canonical row: a type tag, a locale for routing, and the
// field values. Fields holds nil for absent values so every record of a
// type has the same key set.
type Record struct {
	Type   Type
	Locale Locale
	Fields map[string]any
}

// Schema returns the canonical field order for a record type. The exporter
// derives the CSV header from the first record of each type, so emitting
// fields in schema order keeps headers stable across runs.
func Schema(t Type) []string {
	switch t {
	case TypeIssuer:
		return []string{
			"issuer_code", "company_name_ch", "company_name_en",
			"short_name_ch", "short_name_en", "exchange", "board",
			"region", "status", "org_type", "evidence_url", "snapshot_date",
		}
	case TypeSecurity:
		return []string{
			"issuer_code", "stock_code", "exchange", "board", "share_class",
			"status", "list_date", "delist_date", "isin",
			"evidence_url", "snapshot_date",
		}
	case TypeCompanyDetail:
		return []string{
			"issuer_code", "company_name_ch", "company_name_en",
			"business_profile_cn", "business_scope_cn", "industry_csic",
			"registered_capital", "legal_representative", "established_date",
			"registered_address", "website", "email", "phone",
			"disclosure_lang", "evidence_url", "snapshot_date",
		}
	case TypeTopShareholder:
		return []string{
			"issuer_code", "report_date", "rank", "shareholder_name_ch",
			"shareholder_name_en", "holder_type", "shares_held",
			"holding_ratio", "share_class", "restricted_flag",
			"change_direction", "evidence_url", "snapshot_date",
		}
	case TypeJoinedCompanySecurity:
		return []string{
			"issuer_code", "company_name_ch", "company_name_en", "stock_code",
			"exchange", "board", "share_class", "status", "list_date",
			"delist_date", "isin", "issuer_evidence_url",
			"security_evidence_url", "snapshot_date",
		}
	case TypeBSECompany:
		return []string{
			"issuer_code", "company_name_ch", "company_name_en",
			"industry_csic", "registered_capital", "established_date",
			"registered_address", "disclosure_lang", "isin", "listing_date",
			"broker", "evidence_url", "snapshot_date",
		}
	}
	return nil
}

// New creates a record of the given type with every schema field present,
// initialized to nil.
func New(t Type) Record {
	fields := make(map[string]any, len(Schema(t)))
	for _, name := range Schema(t) {
		fields[name] = nil
	}
	return Record{Type: t, Locale: LocaleCN, Fields: fields}
}

// Key builds the composite state-store key: record type plus whichever
// identifying fields are present, in fixed order. Issuer keys carry the
// locale because the CN and EN listings describe the same issuer with
// different fields; ranked sub-records (shareholders) include report_date
// and rank so each rank dedupes independently.
func (r Record) Key() string {
	parts := []string{string(r.Type)}
	if r.Type == TypeIssuer {
		parts = append(parts, string(r.Locale))
	}
	for _, field := range []string{"issuer_code", "stock_code", "report_date", "rank"} {
		if v, ok := r.Fields[field]; ok && v != nil {
			if s := scalarString(v); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "::")
}

// FileName is the routing table from record type (and locale, for issuer
// listings) to the snapshot CSV file.
func FileName(t Type, locale Locale) string {
	switch t {
	case TypeIssuer:
		if locale == LocaleEN {
			return "cn_companies_en.csv"
		}
		return "cn_companies_cn.csv"
	case TypeSecurity:
		return "cn_securities.csv"
	case TypeCompanyDetail:
		return "cn_company_details.csv"
	case TypeTopShareholder:
		return "cn_top5_shareholders.csv"
	case TypeJoinedCompanySecurity:
		return "cn_joined_company_security.csv"
	case TypeBSECompany:
		return "bse_companies.csv"
	}
	return string(t) + ".csv"
}

// Target identifies one output stream: issuer records split by locale,
// everything else by type alone.
func (r Record) Target() string {
	return FileName(r.Type, r.Locale)
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
