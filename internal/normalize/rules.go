package normalize

import (
	"cnpulse/internal/parse"
	"cnpulse/internal/record"
)

// Candidate names one place a canonical field may live: a payload fragment
// (e.g. "snapshot5015", "cninfo5015") and a vendor key within it.
type Candidate struct {
	Fragment string
	Key      string
}

// FieldRule is the ordered candidate list for one canonical field,
// evaluated first-non-empty-wins, with an optional coercion applied to
// the winning value.
type FieldRule struct {
	Field      string
	Candidates []Candidate
	Coerce     func(string) any
}

// RuleSet maps raw payload fragments into one canonical record. The rule
// tables are plain data so field extraction stays unit-testable without
// any transport code.
type RuleSet struct {
	Type  record.Type
	Rules []FieldRule
}

// Apply evaluates every rule against the fragments and returns a record
// with each field set to the first non-empty candidate value (coerced when
// a coercion is configured) or nil when no candidate matched. A missing
// candidate is normalization ambiguity, not an error.
func (rs RuleSet) Apply(fragments map[string]map[string]any) record.Record {
	rec := record.New(rs.Type)
	for _, rule := range rs.Rules {
		raw := ""
		for _, cand := range rule.Candidates {
			frag := fragments[cand.Fragment]
			if frag == nil {
				continue
			}
			if v := parse.String(frag[cand.Key]); v != "" {
				raw = v
				break
			}
		}
		if raw == "" {
			continue
		}
		if rule.Coerce != nil {
			rec.Fields[rule.Field] = rule.Coerce(raw)
		} else {
			rec.Fields[rule.Field] = raw
		}
	}
	return rec
}

// Coercions shared by the rule tables.

func asNumber(s string) any {
	if f := parse.EnsureNumber(s); f != nil {
		return *f
	}
	return nil
}

func asDate(s string) any {
	if d := parse.FormatDate(s); d != "" {
		return d
	}
	return nil
}

func asNameCN(s string) any {
	if n := CompanyNameCN(s); n != "" {
		return n
	}
	return nil
}

func asNameEN(s string) any {
	if n := CompanyNameEN(s); n != "" {
		return n
	}
	return nil
}

// CompanyDetailRules extracts a CompanyDetail record from the cninfo
// getIndexData payloads. The type=2 data block carries three parallel
// arrays: snapshot5015Data (profile, F00xV fields), cninfo5015Data
// (Chinese name) and cninfo5023Data (business profile); the "base"
// fragment carries the type=1 registration block (REGCAP, FRDB,
// BUSINESSSCOPE, ...) when that facet was fetched.
func CompanyDetailRules() RuleSet {
	return RuleSet{
		Type: record.TypeCompanyDetail,
		Rules: []FieldRule{
			{Field: "company_name_ch", Candidates: []Candidate{
				{Fragment: "cninfo5015", Key: "ORGNAME"},
				{Fragment: "base", Key: "ORGNAME"},
				{Fragment: "base", Key: "comFullName"},
				{Fragment: "base", Key: "companyFullName"},
			}, Coerce: asNameCN},
			{Field: "company_name_en", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "ORGNAME"},
				{Fragment: "base", Key: "ENNAME"},
				{Fragment: "base", Key: "comFullNameEn"},
			}, Coerce: asNameEN},
			{Field: "business_profile_cn", Candidates: []Candidate{
				{Fragment: "cninfo5023", Key: "F001V"},
				{Fragment: "base", Key: "COMPROFILE"},
				{Fragment: "base", Key: "GSJJ"},
				{Fragment: "base", Key: "COMPANY_INTRO"},
			}},
			{Field: "business_scope_cn", Candidates: []Candidate{
				{Fragment: "base", Key: "BUSINESSSCOPE"},
				{Fragment: "base", Key: "JYFW"},
			}},
			{Field: "industry_csic", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "F010V"},
				{Fragment: "base", Key: "INDUSTRY_CSIC"},
				{Fragment: "base", Key: "CSRC_IND"},
				{Fragment: "base", Key: "CSRC_MIDDLE"},
			}},
			{Field: "registered_capital", Candidates: []Candidate{
				{Fragment: "base", Key: "REGCAP"},
				{Fragment: "base", Key: "REGISTEREDCAPITAL"},
			}, Coerce: asNumber},
			{Field: "legal_representative", Candidates: []Candidate{
				{Fragment: "base", Key: "FRDB"},
				{Fragment: "base", Key: "LEGALPERSON"},
			}},
			{Field: "established_date", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "F002V"},
				{Fragment: "base", Key: "ESTABLISHDATE"},
				{Fragment: "base", Key: "FOUNDDATE"},
			}, Coerce: asDate},
			{Field: "registered_address", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "F005V"},
				{Fragment: "base", Key: "REGADDR"},
				{Fragment: "base", Key: "REGISTERED_ADDRESS"},
			}},
			{Field: "website", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "F004V"},
				{Fragment: "base", Key: "WEBSITE"},
				{Fragment: "base", Key: "NETADDR"},
			}},
			{Field: "email", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "F007V"},
				{Fragment: "base", Key: "EMAIL"},
			}},
			{Field: "phone", Candidates: []Candidate{
				{Fragment: "snapshot5015", Key: "F008V"},
				{Fragment: "base", Key: "PHONE"},
			}},
		},
	}
}

// SSECompanyRules extracts a CompanyDetail record from the SSE commonQuery
// company-info payload (single flat result row).
func SSECompanyRules() RuleSet {
	return RuleSet{
		Type: record.TypeCompanyDetail,
		Rules: []FieldRule{
			{Field: "company_name_ch", Candidates: []Candidate{
				{Fragment: "result", Key: "FULL_NAME"},
				{Fragment: "result", Key: "COMPANY_ABBR"},
			}, Coerce: asNameCN},
			{Field: "company_name_en", Candidates: []Candidate{
				{Fragment: "result", Key: "FULL_NAME_EN"},
				{Fragment: "result", Key: "FULL_NAME_IN_ENGLISH"},
			}, Coerce: asNameEN},
			{Field: "industry_csic", Candidates: []Candidate{
				{Fragment: "result", Key: "CSRC_CODE_DESC"},
			}},
			{Field: "legal_representative", Candidates: []Candidate{
				{Fragment: "result", Key: "LEGAL_REPRESENTATIVE"},
			}},
			{Field: "registered_address", Candidates: []Candidate{
				{Fragment: "result", Key: "OFFICE_ADDRESS"},
			}},
			{Field: "website", Candidates: []Candidate{
				{Fragment: "result", Key: "FOREIGN_LISTING_ADDRESS"},
			}},
			{Field: "email", Candidates: []Candidate{
				{Fragment: "result", Key: "E_MAIL_ADDRESS"},
			}},
			{Field: "phone", Candidates: []Candidate{
				{Fragment: "result", Key: "INVESTOR_TEL"},
			}},
		},
	}
}
