package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_AllSchemaFieldsPresent(t *testing.T) {
	r := New(TypeIssuer)
	assert.Len(t, r.Fields, len(Schema(TypeIssuer)))
	for _, field := range Schema(TypeIssuer) {
		_, ok := r.Fields[field]
		assert.True(t, ok, "missing field %s", field)
	}
}

func TestKey_CompositeOrder(t *testing.T) {
	r := New(TypeTopShareholder)
	r.Fields["issuer_code"] = "600000"
	r.Fields["report_date"] = "2026-06-30"
	r.Fields["rank"] = 3

	assert.Equal(t, "TopShareholder::600000::2026-06-30::3", r.Key())
}

func TestKey_SkipsAbsentFields(t *testing.T) {
	r := New(TypeIssuer)
	r.Fields["issuer_code"] = "gssz0000001"

	assert.Equal(t, "Issuer::cn::gssz0000001", r.Key())
}

func TestKey_IssuerLocalesDistinct(t *testing.T) {
	cn := New(TypeIssuer)
	cn.Fields["issuer_code"] = "600000"

	en := New(TypeIssuer)
	en.Locale = LocaleEN
	en.Fields["issuer_code"] = "600000"

	assert.NotEqual(t, cn.Key(), en.Key())
}

func TestKey_NumericIdentifiers(t *testing.T) {
	r := New(TypeSecurity)
	r.Fields["issuer_code"] = "600000"
	r.Fields["stock_code"] = float64(600000) // JSON-decoded number

	assert.Equal(t, "Security::600000::600000", r.Key())
}

func TestFileName_RoutingTable(t *testing.T) {
	tests := []struct {
		t      Type
		locale Locale
		want   string
	}{
		{TypeIssuer, LocaleCN, "cn_companies_cn.csv"},
		{TypeIssuer, LocaleEN, "cn_companies_en.csv"},
		{TypeSecurity, LocaleCN, "cn_securities.csv"},
		{TypeCompanyDetail, LocaleCN, "cn_company_details.csv"},
		{TypeTopShareholder, LocaleCN, "cn_top5_shareholders.csv"},
		{TypeJoinedCompanySecurity, LocaleCN, "cn_joined_company_security.csv"},
		{TypeBSECompany, LocaleCN, "bse_companies.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.t, tt.locale))
	}
}

func TestTarget_LocaleRouting(t *testing.T) {
	r := New(TypeIssuer)
	assert.Equal(t, "cn_companies_cn.csv", r.Target())

	r.Locale = LocaleEN
	assert.Equal(t, "cn_companies_en.csv", r.Target())
}
