package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuri/excelize/v2"

	"cnpulse/internal/record"
)

func issuerRecord(code, nameCN string) record.Record {
	rec := record.New(record.TypeIssuer)
	rec.Fields["issuer_code"] = code
	rec.Fields["company_name_ch"] = nameCN
	rec.Fields["snapshot_date"] = "2026-08-28"
	rec.Fields["evidence_url"] = "https://example.test/list"
	return rec
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestSnapshotWriter_LazyFilePerType(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir, "2026-08-28", nil)

	require.NoError(t, w.Write(issuerRecord("600000", "浦发银行")))
	require.NoError(t, w.Write(issuerRecord("688001", "华兴源创")))

	sec := record.New(record.TypeSecurity)
	sec.Fields["issuer_code"] = "600000"
	sec.Fields["stock_code"] = "600000"
	require.NoError(t, w.Write(sec))

	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	rows := readCSV(t, filepath.Join(dir, "2026-08-28", "cn_companies_cn.csv"))
	require.Len(t, rows, 3, "header plus two records")
	assert.Equal(t, record.Schema(record.TypeIssuer), rows[0])
	assert.Equal(t, "600000", rows[1][0])
	assert.Equal(t, "浦发银行", rows[1][1])
}

func TestSnapshotWriter_LocaleSplitsIssuerFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir, "2026-08-28", nil)

	cn := issuerRecord("600000", "浦发银行")
	en := issuerRecord("600000", "")
	en.Locale = record.LocaleEN
	en.Fields["company_name_en"] = "SPD Bank"

	require.NoError(t, w.Write(cn))
	require.NoError(t, w.Write(en))
	require.NoError(t, w.Close())

	_, err := os.Stat(filepath.Join(dir, "2026-08-28", "cn_companies_cn.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "2026-08-28", "cn_companies_en.csv"))
	assert.NoError(t, err)
}

func TestSnapshotWriter_NilAndTypedCells(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir, "2026-08-28", nil)

	rec := record.New(record.TypeTopShareholder)
	rec.Fields["issuer_code"] = "600000"
	rec.Fields["rank"] = 1
	rec.Fields["shares_held"] = int64(123456789)
	rec.Fields["holding_ratio"] = 12.34
	rec.Fields["restricted_flag"] = false

	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	rows := readCSV(t, filepath.Join(dir, "2026-08-28", "cn_top5_shareholders.csv"))
	require.Len(t, rows, 2)

	header := rows[0]
	byCol := map[string]string{}
	for i, col := range header {
		byCol[col] = rows[1][i]
	}
	assert.Equal(t, "1", byCol["rank"])
	assert.Equal(t, "123456789", byCol["shares_held"])
	assert.Equal(t, "12.34", byCol["holding_ratio"])
	assert.Equal(t, "false", byCol["restricted_flag"])
	assert.Equal(t, "", byCol["holder_type"], "nil field renders as empty cell")
}

func TestSnapshotWriter_CloseIdempotentAndWriteAfterCloseFails(t *testing.T) {
	w := NewSnapshotWriter(t.TempDir(), "2026-08-28", nil)
	require.NoError(t, w.Write(issuerRecord("600000", "浦发银行")))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err := w.Write(issuerRecord("600004", "白云机场"))
	assert.Error(t, err)
}

func TestSnapshotWriter_CloseWithoutWrites(t *testing.T) {
	w := NewSnapshotWriter(t.TempDir(), "2026-08-28", nil)
	assert.NoError(t, w.Close())
}

func TestWorkbookWriter_MirrorsCSVs(t *testing.T) {
	dir := t.TempDir()
	w := NewSnapshotWriter(dir, "2026-08-28", nil)
	require.NoError(t, w.Write(issuerRecord("600000", "浦发银行")))
	require.NoError(t, w.Close())

	snapDir := filepath.Join(dir, "2026-08-28")
	require.NoError(t, NewWorkbookWriter(nil).Mirror(snapDir))

	book, err := excelize.OpenFile(filepath.Join(snapDir, "snapshot.xlsx"))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("cn_companies_cn")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "issuer_code", rows[0][0])
	assert.Equal(t, "600000", rows[1][0])
}

func TestWorkbookWriter_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, NewWorkbookWriter(nil).Mirror(dir))
	_, err := os.Stat(filepath.Join(dir, "snapshot.xlsx"))
	assert.True(t, os.IsNotExist(err))
}
