package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnpulse/internal/exporter"
	"cnpulse/internal/metrics"
	"cnpulse/internal/record"
	"cnpulse/internal/state"
)

type testEnv struct {
	stateDir string
	snapDir  string
}

func newPipeline(t *testing.T, env *testEnv) *Pipeline {
	t.Helper()
	if env.stateDir == "" {
		env.stateDir = t.TempDir()
		env.snapDir = t.TempDir()
	}
	store, err := state.NewStore(env.stateDir, nil)
	require.NoError(t, err)
	writer := exporter.NewSnapshotWriter(env.snapDir, "2026-08-28", nil)
	m := metrics.NewPipeline(prometheus.NewRegistry())
	return New(store, writer, m, nil)
}

func issuer(code, name string) record.Record {
	rec := record.New(record.TypeIssuer)
	rec.Fields["issuer_code"] = code
	rec.Fields["company_name_ch"] = name
	rec.Fields["snapshot_date"] = "2026-08-28"
	rec.Fields["evidence_url"] = "https://example.test/list"
	return rec
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return len(rows)
}

func TestPipeline_ExportThenSuppress(t *testing.T) {
	env := &testEnv{}
	p := newPipeline(t, env)

	require.NoError(t, p.Process(issuer("600000", "浦发银行")))
	require.NoError(t, p.Process(issuer("600000", "浦发银行")))
	require.NoError(t, p.Close())

	assert.Equal(t, 1, p.Exported()[record.TypeIssuer])
	assert.Equal(t, 1, p.Suppressed()[record.TypeIssuer])
}

func TestPipeline_IdempotentRerun(t *testing.T) {
	env := &testEnv{}
	records := []record.Record{
		issuer("600000", "浦发银行"),
		issuer("688001", "华兴源创"),
		issuer("430001", "某北交所公司"),
	}

	first := newPipeline(t, env)
	for _, rec := range records {
		require.NoError(t, first.Process(rec))
	}
	require.NoError(t, first.Close())
	assert.Equal(t, 3, first.Exported()[record.TypeIssuer])

	stateFiles, err := os.ReadDir(env.stateDir)
	require.NoError(t, err)
	firstCount := len(stateFiles)

	// Second run over identical input: zero exports, zero new state files.
	env.snapDir = t.TempDir()
	second := newPipeline(t, env)
	for _, rec := range records {
		require.NoError(t, second.Process(rec))
	}
	require.NoError(t, second.Close())

	assert.Equal(t, 0, second.Exported()[record.TypeIssuer])
	assert.Equal(t, 3, second.Suppressed()[record.TypeIssuer])
	assert.Equal(t, 0, countRows(t, filepath.Join(env.snapDir, "2026-08-28", "cn_companies_cn.csv")),
		"no output file should be opened when every record is suppressed")

	stateFiles, err = os.ReadDir(env.stateDir)
	require.NoError(t, err)
	assert.Equal(t, firstCount, len(stateFiles))
}

func TestPipeline_ChangedRecordExportsAgain(t *testing.T) {
	env := &testEnv{}

	first := newPipeline(t, env)
	require.NoError(t, first.Process(issuer("600000", "浦发银行")))
	require.NoError(t, first.Close())

	env.snapDir = t.TempDir()
	second := newPipeline(t, env)
	changed := issuer("600000", "浦发银行")
	changed.Fields["org_type"] = "上市公司"
	require.NoError(t, second.Process(changed))
	require.NoError(t, second.Close())

	assert.Equal(t, 1, second.Exported()[record.TypeIssuer])
	assert.Equal(t, 0, second.Suppressed()[record.TypeIssuer])
}

func TestPipeline_DedupeSeesNormalizedValues(t *testing.T) {
	env := &testEnv{}

	first := newPipeline(t, env)
	require.NoError(t, first.Process(issuer("600000", "上海浦东发展银行股份有限公司")))
	require.NoError(t, first.Close())

	// Cosmetically different raw value normalizing to the same canonical
	// name must be suppressed.
	second := newPipeline(t, env)
	require.NoError(t, second.Process(issuer("600000", " 上海浦东发展银行 股份有限公司 ")))
	require.NoError(t, second.Close())

	assert.Equal(t, 0, second.Exported()[record.TypeIssuer])
	assert.Equal(t, 1, second.Suppressed()[record.TypeIssuer])
}
