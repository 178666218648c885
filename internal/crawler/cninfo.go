package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"cnpulse/internal/exchange"
	"cnpulse/internal/metrics"
	"cnpulse/internal/normalize"
	"cnpulse/internal/parse"
	"cnpulse/internal/record"
)

const cninfoBaseURL = "https://www.cninfo.com.cn"

// CNInfoSource crawls the cninfo yellowpages: CN and EN universe listings,
// per-security detail payloads, shareholder lists and the joined CN/EN
// company-security view.
type CNInfoSource struct {
	Client  *Client
	BaseURL string
	Opts    Options
	Logger  *slog.Logger
	Metrics *metrics.Pipeline
}

// cnEntity is one discovered security with its listing-row context.
type cnEntity struct {
	scode      string
	issuerCode string
	nameCN     string
}

func (s *CNInfoSource) Name() string { return "cninfo" }

func (s *CNInfoSource) base() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return cninfoBaseURL
}

func (s *CNInfoSource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Crawl runs discovery (both locale listings — a failed listing is fatal
// for the market), emits issuer and joined records, then fans out detail
// and shareholder fetches per discovered entity.
func (s *CNInfoSource) Crawl(ctx context.Context, emit Emit) error {
	listURL := func(locale string) string {
		return fmt.Sprintf(
			"%s/data/yellowpages/getYellowpageStockList?type=%s&pagenum=-1&keyword=&Sortcolumn=SECCODE",
			s.base(), locale)
	}

	cnURL := listURL("cn")
	cnRows, err := s.fetchListing(ctx, cnURL)
	if err != nil {
		s.countDiscoveryFailure()
		return fmt.Errorf("discovery (cn listing): %w", err)
	}

	enURL := listURL("en")
	enRows, err := s.fetchListing(ctx, enURL)
	if err != nil {
		s.countDiscoveryFailure()
		return fmt.Errorf("discovery (en listing): %w", err)
	}

	s.logger().Info("cninfo universe discovered",
		slog.Int("cn_rows", len(cnRows)),
		slog.Int("en_rows", len(enRows)))

	entities, cnNames := s.emitIssuers(cnRows, record.LocaleCN, cnURL, emit)
	_, enNames := s.emitIssuers(enRows, record.LocaleEN, enURL, emit)

	s.emitJoined(cnNames, enNames, cnURL, enURL, emit)

	if len(s.Opts.Codes) > 0 {
		want := make(map[string]struct{}, len(s.Opts.Codes))
		for _, code := range s.Opts.Codes {
			want[parse.PadCode(code)] = struct{}{}
		}
		kept := entities[:0]
		for _, ent := range entities {
			if _, ok := want[ent.scode]; ok {
				kept = append(kept, ent)
			}
		}
		entities = kept
	}
	entities = limitRows(entities, s.Opts.Limit)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency())
	for _, ent := range entities {
		group.Go(func() error {
			s.fetchDetail(gctx, ent, emit)
			s.fetchShareholders(gctx, ent, emit)
			return nil
		})
	}
	return group.Wait()
}

func (s *CNInfoSource) concurrency() int {
	if s.Opts.Concurrency > 0 {
		return s.Opts.Concurrency
	}
	return 4
}

func (s *CNInfoSource) countDiscoveryFailure() {
	if s.Metrics != nil {
		s.Metrics.DiscoveryFailures.WithLabelValues(s.Name()).Inc()
	}
}

func (s *CNInfoSource) countFetchFailure() {
	if s.Metrics != nil {
		s.Metrics.FetchFailures.WithLabelValues(s.Name()).Inc()
	}
}

func (s *CNInfoSource) fetchListing(ctx context.Context, url string) ([]map[string]any, error) {
	payload, err := s.Client.GetJSON(ctx, url, s.base()+"/")
	if err != nil {
		return nil, err
	}
	rows := parse.Rows(payload)
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty listing from %s", url)
	}
	return rows, nil
}

// emitIssuers maps listing rows to issuer records for one locale and
// returns the discovered entities plus an issuer-code -> name index used
// by the joined view.
func (s *CNInfoSource) emitIssuers(rows []map[string]any, locale record.Locale, evidence string, emit Emit) ([]cnEntity, map[string]cnEntity) {
	entities := make([]cnEntity, 0, len(rows))
	index := make(map[string]cnEntity, len(rows))

	for _, row := range rows {
		scode := parse.PadCode(parse.Pick(row, "SECCODE", "seccode"))
		if scode == "" || scode == "000000" {
			continue
		}
		issuerCode := parse.Pick(row, "ORGID", "ORGCODE", "SECID")
		if issuerCode == "" {
			issuerCode = scode
		}
		name := parse.Pick(row, "ORGNAME", "SECNAME", "orgname", "secname")
		shortName := parse.Pick(row, "SECNAME", "secname")
		exch, board := exchange.Classify(scode)
		if board == "" {
			board = exchange.Board(scode, exch)
		}

		rec := record.New(record.TypeIssuer)
		rec.Locale = locale
		rec.Fields["issuer_code"] = issuerCode
		if locale == record.LocaleCN {
			rec.Fields["company_name_ch"] = orNil(name)
			rec.Fields["short_name_ch"] = orNil(shortName)
			rec.Fields["org_type"] = orNil(parse.Pick(row, "ORGTYPE", "orgtype"))
		} else {
			rec.Fields["company_name_en"] = orNil(name)
			rec.Fields["short_name_en"] = orNil(shortName)
			rec.Fields["org_type"] = orNil(parse.Pick(row, "ORGTYPE", "orgtype"))
		}
		rec.Fields["exchange"] = orNil(exch)
		rec.Fields["board"] = orNil(board)
		rec.Fields["region"] = "CN"
		rec.Fields["status"] = "Active"
		rec.Fields["evidence_url"] = evidence
		rec.Fields["snapshot_date"] = s.Opts.SnapshotDate
		emit(rec)

		ent := cnEntity{scode: scode, issuerCode: issuerCode, nameCN: name}
		entities = append(entities, ent)
		if _, seen := index[issuerCode]; !seen {
			index[issuerCode] = ent
		}
	}
	return entities, index
}

// emitJoined merges the CN and EN universes into joined records keyed by
// issuer code. The join is a best-effort union: identifiers present in
// only one locale are logged, not reconciled.
func (s *CNInfoSource) emitJoined(cn, en map[string]cnEntity, cnEvidence, enEvidence string, emit Emit) {
	all := make(map[string]struct{}, len(cn)+len(en))
	for code := range cn {
		all[code] = struct{}{}
	}
	for code := range en {
		all[code] = struct{}{}
	}

	emitted, cnOnly, enOnly := 0, 0, 0
	for issuerCode := range all {
		cnEnt, hasCN := cn[issuerCode]
		enEnt, hasEN := en[issuerCode]
		if !hasEN {
			cnOnly++
		}
		if !hasCN {
			enOnly++
		}

		scode := cnEnt.scode
		if scode == "" {
			scode = enEnt.scode
		}
		if len(scode) != 6 {
			continue
		}
		exch, board := exchange.Classify(scode)
		if board == "" {
			board = exchange.Board(scode, exch)
		}

		rec := record.New(record.TypeJoinedCompanySecurity)
		rec.Fields["issuer_code"] = issuerCode
		rec.Fields["company_name_ch"] = orNil(cnEnt.nameCN)
		rec.Fields["company_name_en"] = orNil(enEnt.nameCN)
		rec.Fields["stock_code"] = scode
		rec.Fields["exchange"] = orNil(exch)
		rec.Fields["board"] = orNil(board)
		rec.Fields["share_class"] = exchange.ShareClass(scode)
		rec.Fields["status"] = "Active"
		evidence := cnEvidence
		if !hasCN {
			evidence = enEvidence
		}
		rec.Fields["issuer_evidence_url"] = evidence
		rec.Fields["security_evidence_url"] = fmt.Sprintf(
			"%s/new/snapshot/companyDetailCn?code=%s", s.base(), scode)
		rec.Fields["snapshot_date"] = s.Opts.SnapshotDate
		emit(rec)
		emitted++
	}

	s.logger().Info("cninfo joined view merged",
		slog.Int("emitted", emitted),
		slog.Int("cn_total", len(cn)),
		slog.Int("en_total", len(en)))
	if cnOnly > 0 {
		s.logger().Warn("issuers present only in CN listing", slog.Int("count", cnOnly))
	}
	if enOnly > 0 {
		s.logger().Warn("issuers present only in EN listing", slog.Int("count", enOnly))
	}
}

// fetchDetail pulls the per-security getIndexData payloads and emits the
// Security and CompanyDetail records. type=2 carries the snapshot blocks,
// type=1 the registration block; each facet degrades independently, so a
// failed type=1 still yields a detail record from the type=2 fragments.
func (s *CNInfoSource) fetchDetail(ctx context.Context, ent cnEntity, emit Emit) {
	url := fmt.Sprintf("%s/data/yellowpages/getIndexData?scode=%s&type=2", s.base(), ent.scode)
	payload, err := s.Client.GetJSON(ctx, url, s.base()+"/")
	if err != nil {
		s.countFetchFailure()
		s.logger().Warn("detail fetch failed",
			slog.String("scode", ent.scode),
			slog.String("error", err.Error()))
		return
	}

	fragments := detailFragments(payload)
	base := fragments["base"]

	// Security record.
	stockCode := parse.PadCode(parse.Pick(base, "SECCODE"))
	if stockCode == "" {
		stockCode = ent.scode
	}

	exch := ""
	if snap := fragments["snapshot5015"]; snap != nil {
		exch = exchange.Normalize(parse.String(snap["F012V"]))
	}
	if exch == "" {
		exch, _ = exchange.Classify(stockCode)
	}
	board := exchange.Board(stockCode, exch)

	sec := record.New(record.TypeSecurity)
	sec.Fields["issuer_code"] = ent.issuerCode
	sec.Fields["stock_code"] = stockCode
	sec.Fields["exchange"] = orNil(exch)
	sec.Fields["board"] = orNil(board)
	sec.Fields["share_class"] = exchange.ShareClass(stockCode)
	sec.Fields["status"] = "Active"
	sec.Fields["list_date"] = orNil(listDate(fragments))
	sec.Fields["isin"] = orNil(findISIN(fragments))
	sec.Fields["evidence_url"] = url
	sec.Fields["snapshot_date"] = s.Opts.SnapshotDate
	emit(sec)

	// The registration fields (REGCAP, FRDB, BUSINESSSCOPE, ...) live only
	// in the type=1 payload. Overlay its company block onto the base
	// fragment; on failure the rule table runs on the type=2 fragments.
	profileURL := fmt.Sprintf("%s/data/yellowpages/getIndexData?scode=%s&type=1", s.base(), ent.scode)
	if profile, err := s.Client.GetJSON(ctx, profileURL, s.base()+"/"); err != nil {
		s.countFetchFailure()
		s.logger().Warn("company profile fetch failed",
			slog.String("scode", ent.scode),
			slog.String("error", err.Error()))
	} else if block := companyBlock(profile); len(block) > 0 {
		merged := make(map[string]any, len(base)+len(block))
		for k, v := range base {
			merged[k] = v
		}
		for k, v := range block {
			merged[k] = v
		}
		fragments["base"] = merged
	}

	// Company detail record via the data-driven rule table.
	detail := normalize.CompanyDetailRules().Apply(fragments)
	detail.Fields["issuer_code"] = ent.issuerCode
	if detail.Fields["company_name_ch"] == nil {
		detail.Fields["company_name_ch"] = orNil(ent.nameCN)
	}
	detail.Fields["disclosure_lang"] = "cn"
	detail.Fields["evidence_url"] = url
	detail.Fields["snapshot_date"] = s.Opts.SnapshotDate
	emit(detail)
}

// companyBlock locates the registration map inside the type=1 payload,
// which nests under baseInfo, company or data depending on vintage.
func companyBlock(payload map[string]any) map[string]any {
	for _, key := range []string{"baseInfo", "company", "data"} {
		if m, ok := payload[key].(map[string]any); ok {
			return m
		}
		if row := parse.FirstRow(payload[key]); row != nil {
			return row
		}
	}
	return payload
}

// fetchShareholders pulls the shareholder XHR and emits up to ten ranked
// records. Rank prefers the source's explicit value and falls back to
// extraction order.
func (s *CNInfoSource) fetchShareholders(ctx context.Context, ent cnEntity, emit Emit) {
	url := fmt.Sprintf(
		"%s/data/yellowpages/singleStockData?scode=%s&sign=1&type=1&mergerMark=shareHoldersData",
		s.base(), ent.scode)
	payload, err := s.Client.GetJSON(ctx, url, s.base()+"/")
	if err != nil {
		s.countFetchFailure()
		s.logger().Warn("shareholder fetch failed",
			slog.String("scode", ent.scode),
			slog.String("error", err.Error()))
		return
	}

	rows, reportDate := shareholderRows(payload)
	if len(rows) == 0 {
		s.logger().Warn("no shareholder rows", slog.String("scode", ent.scode))
		return
	}

	for idx, row := range rows {
		if idx >= maxShareholders {
			break
		}
		rec := record.New(record.TypeTopShareholder)
		rec.Fields["issuer_code"] = ent.issuerCode

		if compactShareholderRow(row) {
			if reportDate == "" {
				reportDate = parse.FormatDate(row["F001D"])
			}
			rec.Fields["report_date"] = orNil(reportDate)
			rec.Fields["rank"] = idx + 1
			rec.Fields["shareholder_name_ch"] = orNil(parse.String(row["F002V"]))
			rec.Fields["shares_held"] = intOrNil(parse.EnsureInt(row["F003N"]))
			rec.Fields["holding_ratio"] = floatOrNil(parse.EnsurePercent(row["F004N"]))
			rec.Fields["share_class"] = "A"
			rec.Fields["restricted_flag"] = false
		} else {
			rd := reportDate
			if rd == "" {
				rd = parse.Pick(row, "reportDate", "REPORT_DATE")
			}
			rec.Fields["report_date"] = orNil(rd)
			rec.Fields["rank"] = explicitRank(row, idx+1)
			rec.Fields["shareholder_name_ch"] = orNil(parse.Pick(row, "HOLDER_NAME", "holderName", "SHAREHOLDER"))
			rec.Fields["holder_type"] = orNil(parse.Pick(row, "HOLDER_TYPE", "holderType"))
			rec.Fields["shares_held"] = intOrNil(parse.EnsureInt(firstValue(row, "HOLD_NUM", "holdNum", "HOLDING")))
			rec.Fields["holding_ratio"] = floatOrNil(parse.EnsurePercent(firstValue(row, "HOLD_RATIO", "holdRatio", "PCT")))
			cls := parse.Pick(row, "SHARE_CLASS", "shareClass")
			if strings.Contains(strings.ToUpper(cls), "B") {
				rec.Fields["share_class"] = "B"
			} else {
				rec.Fields["share_class"] = "A"
			}
			rec.Fields["restricted_flag"] = truthy(parse.Pick(row, "RESTRICTED", "isRestricted"))
			rec.Fields["change_direction"] = orNil(parse.Pick(row, "CHANGE_DIR", "changeDir"))
		}

		rec.Fields["evidence_url"] = url
		rec.Fields["snapshot_date"] = s.Opts.SnapshotDate
		emit(rec)
	}
}

const maxShareholders = 10

// detailFragments splits the getIndexData payload into its named blocks.
// The data block nests either at the top level or under "data".
func detailFragments(payload map[string]any) map[string]map[string]any {
	block := payload
	if inner, ok := payload["data"].(map[string]any); ok {
		block = inner
	}

	fragments := map[string]map[string]any{"base": block}
	for frag, key := range map[string]string{
		"snapshot5015": "snapshot5015Data",
		"cninfo5015":   "cninfo5015Data",
		"cninfo5023":   "cninfo5023Data",
	} {
		if row := parse.FirstRow(block[key]); row != nil {
			fragments[frag] = row
		} else if row := parse.FirstRow(payload[key]); row != nil {
			fragments[frag] = row
		}
	}
	return fragments
}

func listDate(fragments map[string]map[string]any) string {
	if snap := fragments["snapshot5015"]; snap != nil {
		if d := parse.FormatDate(parse.Pick(snap, "F003V", "LIST_DATE")); d != "" {
			return d
		}
	}
	return parse.FormatDate(parse.Pick(fragments["base"], "F003V", "LIST_DATE"))
}

// findISIN scans the snapshot5015 block and the base block for anything
// that looks like an ISIN: an explicit "ISIN: XXX" label or a bare
// 12-character alphanumeric code.
func findISIN(fragments map[string]map[string]any) string {
	if snap := fragments["snapshot5015"]; snap != nil {
		if isin := maybeISIN(parse.String(snap["F001V"])); isin != "" {
			return isin
		}
		// Sorted key scan keeps the winner stable across runs.
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if isin := maybeISIN(parse.String(snap[k])); isin != "" {
				return isin
			}
		}
	}
	if base := fragments["base"]; base != nil {
		if isin := maybeISIN(parse.Pick(base, "ISIN", "isin")); isin != "" {
			return isin
		}
	}
	return ""
}

func maybeISIN(s string) string {
	if s == "" {
		return ""
	}
	v := strings.ReplaceAll(strings.TrimSpace(s), "：", ":")
	if strings.HasPrefix(strings.ToLower(v), "isin:") {
		cand := strings.TrimSpace(v[len("isin:"):])
		if isISINShaped(cand) {
			return strings.ToUpper(cand)
		}
	}
	compact := strings.ReplaceAll(v, " ", "")
	if isISINShaped(compact) {
		return strings.ToUpper(compact)
	}
	return ""
}

func isISINShaped(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// shareholderRows locates the row list and report date across the payload
// shape variants.
func shareholderRows(payload map[string]any) ([]map[string]any, string) {
	reportDate := ""
	if container, ok := payload["shareHoldersData"]; ok {
		switch c := container.(type) {
		case map[string]any:
			reportDate = parse.FormatDate(parse.Pick(c, "reportDate", "REPORT_DATE"))
			for _, key := range []string{"list", "data"} {
				if rows := parse.Rows(map[string]any{"records": c[key]}); rows != nil {
					return rows, reportDate
				}
			}
			return nil, reportDate
		case []any:
			return parse.Rows(map[string]any{"records": c}), ""
		}
	}
	return parse.Rows(payload), ""
}

func compactShareholderRow(row map[string]any) bool {
	for k := range row {
		if strings.HasPrefix(k, "F00") {
			return true
		}
	}
	return false
}

func explicitRank(row map[string]any, fallback int) int {
	if r := parse.EnsureInt(firstValue(row, "RANK", "rank")); r != nil {
		return int(*r)
	}
	return fallback
}

func firstValue(row map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := row[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intOrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
