package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"cnpulse/internal/exchange"
	"cnpulse/internal/metrics"
	"cnpulse/internal/normalize"
	"cnpulse/internal/parse"
	"cnpulse/internal/record"
)

const (
	sseQueryBaseURL = "https://query.sse.com.cn"
	sseReferer      = "https://www.sse.com.cn/"

	sseListSQLID         = "COMMON_SSE_CP_GPJCTPZ_GPLB_GP_L"
	sseCompanySQLID      = "COMMON_SSE_CP_GPJCTPZ_GPLB_GPGK_GSGK_C"
	sseShareholdersSQLID = "COMMON_SSE_PL_XBRL_TOP10SHAREHOLDERS"
	sseCapitalSQLID      = "COMMON_SSE_CP_GSGK_GBJG_L"
)

// SSESource crawls the Shanghai exchange query gateway: the listed-company
// universe, then per company the profile, top-ten shareholders and capital
// structure.
type SSESource struct {
	Client  *Client
	BaseURL string
	Opts    Options
	Logger  *slog.Logger
	Metrics *metrics.Pipeline
}

type sseEntity struct {
	companyCode string
	stockCode   string
	abbr        string
	listDate    string
}

func (s *SSESource) Name() string { return "sse" }

func (s *SSESource) base() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return sseQueryBaseURL
}

func (s *SSESource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Crawl discovers the company list, then runs the per-company detail chain
// under the fan-out limit. An explicit Codes list bypasses discovery.
func (s *SSESource) Crawl(ctx context.Context, emit Emit) error {
	entities, listURL, err := s.discover(ctx)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.DiscoveryFailures.WithLabelValues(s.Name()).Inc()
		}
		return fmt.Errorf("discovery (company list): %w", err)
	}
	s.logger().Info("sse universe discovered", slog.Int("companies", len(entities)))

	entities = limitRows(entities, s.Opts.Limit)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency())
	for _, ent := range entities {
		group.Go(func() error {
			s.crawlCompany(gctx, ent, listURL, emit)
			return nil
		})
	}
	return group.Wait()
}

func (s *SSESource) concurrency() int {
	if s.Opts.Concurrency > 0 {
		return s.Opts.Concurrency
	}
	return 4
}

func (s *SSESource) discover(ctx context.Context) ([]sseEntity, string, error) {
	listURL := fmt.Sprintf(
		"%s/commonQuery.do?sqlId=%s&isPagination=false&STOCK_TYPE=1&COMPANY_STATUS=2,4,5,7,8",
		s.base(), sseListSQLID)

	if len(s.Opts.Codes) > 0 {
		entities := make([]sseEntity, 0, len(s.Opts.Codes))
		for _, code := range s.Opts.Codes {
			padded := parse.PadCode(code)
			entities = append(entities, sseEntity{companyCode: padded, stockCode: padded})
		}
		return entities, listURL, nil
	}

	payload, err := s.Client.GetJSON(ctx, listURL, sseReferer)
	if err != nil {
		return nil, listURL, err
	}
	rows := sseRows(payload)
	if len(rows) == 0 {
		return nil, listURL, fmt.Errorf("empty company list from %s", listURL)
	}

	entities := make([]sseEntity, 0, len(rows))
	for _, row := range rows {
		companyCode := parse.PadCode(parse.Pick(row, "COMPANY_CODE", "companyCode"))
		if companyCode == "" {
			continue
		}
		stockCode := parse.PadCode(parse.Pick(row, "A_STOCK_CODE", "SECURITY_CODE_A", "B_STOCK_CODE"))
		if stockCode == "" {
			stockCode = companyCode
		}
		entities = append(entities, sseEntity{
			companyCode: companyCode,
			stockCode:   stockCode,
			abbr:        parse.Pick(row, "COMPANY_ABBR", "SECURITY_ABBR_A"),
			listDate:    parse.FormatDate(parse.Pick(row, "LIST_DATE", "LISTING_DATE")),
		})
	}
	return entities, listURL, nil
}

// crawlCompany runs the profile -> shareholders -> capital-structure chain
// for one company. Each fetch degrades independently.
func (s *SSESource) crawlCompany(ctx context.Context, ent sseEntity, listURL string, emit Emit) {
	infoURL := fmt.Sprintf("%s/commonSoaQuery.do?sqlId=%s&COMPANY_CODE=%s",
		s.base(), sseCompanySQLID, ent.companyCode)

	var info map[string]any
	payload, err := s.Client.GetJSON(ctx, infoURL, sseReferer)
	if err != nil {
		s.countFetchFailure()
		s.logger().Warn("company info fetch failed",
			slog.String("company_code", ent.companyCode),
			slog.String("error", err.Error()))
	} else if rows := sseRows(payload); len(rows) > 0 {
		info = rows[0]
	}

	totalShares := s.fetchCapitalStructure(ctx, ent)

	exch, board := exchange.Classify(ent.stockCode)
	if exch == "" {
		exch = exchange.SSE
		board = exchange.Board(ent.stockCode, exch)
	}

	// Issuer record from the listing row plus the profile.
	iss := record.New(record.TypeIssuer)
	iss.Fields["issuer_code"] = ent.companyCode
	iss.Fields["company_name_ch"] = orNil(parse.Pick(info, "FULL_NAME"))
	if iss.Fields["company_name_ch"] == nil {
		iss.Fields["company_name_ch"] = orNil(ent.abbr)
	}
	iss.Fields["company_name_en"] = orNil(parse.Pick(info, "FULL_NAME_EN", "FULL_NAME_IN_ENGLISH"))
	iss.Fields["short_name_ch"] = orNil(ent.abbr)
	iss.Fields["exchange"] = exch
	iss.Fields["board"] = orNil(board)
	iss.Fields["region"] = "CN"
	iss.Fields["status"] = "Active"
	iss.Fields["evidence_url"] = listURL
	iss.Fields["snapshot_date"] = s.Opts.SnapshotDate
	emit(iss)

	// Security record.
	sec := record.New(record.TypeSecurity)
	sec.Fields["issuer_code"] = ent.companyCode
	sec.Fields["stock_code"] = ent.stockCode
	sec.Fields["exchange"] = exch
	sec.Fields["board"] = orNil(exchange.Board(ent.stockCode, exch))
	sec.Fields["share_class"] = exchange.ShareClass(ent.stockCode)
	sec.Fields["status"] = "Active"
	listDate := ent.listDate
	if listDate == "" {
		listDate = parse.FormatDate(parse.Pick(info, "A_LIST_DATE", "LIST_DATE"))
	}
	sec.Fields["list_date"] = orNil(listDate)
	sec.Fields["evidence_url"] = infoURL
	sec.Fields["snapshot_date"] = s.Opts.SnapshotDate
	emit(sec)

	if info != nil {
		detail := normalize.SSECompanyRules().Apply(map[string]map[string]any{"result": info})
		detail.Fields["issuer_code"] = ent.companyCode
		detail.Fields["disclosure_lang"] = "cn"
		detail.Fields["evidence_url"] = infoURL
		detail.Fields["snapshot_date"] = s.Opts.SnapshotDate
		emit(detail)
	}

	s.fetchShareholders(ctx, ent, totalShares, emit)
}

// fetchCapitalStructure returns the total share count used as the ratio
// denominator when the shareholder rows carry amounts but no percentage.
// Zero means unknown.
func (s *SSESource) fetchCapitalStructure(ctx context.Context, ent sseEntity) float64 {
	url := fmt.Sprintf("%s/commonSoaQuery.do?sqlId=%s&COMPANY_CODE=%s",
		s.base(), sseCapitalSQLID, ent.companyCode)
	payload, err := s.Client.GetJSON(ctx, url, sseReferer)
	if err != nil {
		s.countFetchFailure()
		s.logger().Warn("capital structure fetch failed",
			slog.String("company_code", ent.companyCode),
			slog.String("error", err.Error()))
		return 0
	}
	rows := sseRows(payload)
	if len(rows) == 0 {
		return 0
	}
	if total := parse.EnsureNumber(firstValue(rows[0], "TOTAL_SHARES", "DOMESTIC_SHARES", "TOTAL_CAPITAL")); total != nil {
		return *total
	}
	return 0
}

func (s *SSESource) fetchShareholders(ctx context.Context, ent sseEntity, totalShares float64, emit Emit) {
	url := fmt.Sprintf("%s/commonSoaQuery.do?sqlId=%s&stockId=%s&isPagination=false",
		s.base(), sseShareholdersSQLID, ent.stockCode)
	payload, err := s.Client.GetJSON(ctx, url, sseReferer)
	if err != nil {
		s.countFetchFailure()
		s.logger().Warn("shareholder fetch failed",
			slog.String("stock_code", ent.stockCode),
			slog.String("error", err.Error()))
		return
	}

	rows := sseRows(payload)
	for idx, row := range rows {
		if idx >= maxShareholders {
			break
		}
		rec := record.New(record.TypeTopShareholder)
		rec.Fields["issuer_code"] = ent.companyCode
		rec.Fields["report_date"] = orNil(parse.FormatDate(parse.Pick(row, "END_DATE", "REPORT_DATE", "CHANGE_DATE")))
		rec.Fields["rank"] = explicitRank(row, idx+1)
		rec.Fields["shareholder_name_ch"] = orNil(parse.Pick(row, "SHAREHOLDER_NAME", "HOLDER_NAME"))
		rec.Fields["holder_type"] = orNil(parse.Pick(row, "SHAREHOLDER_NATURE", "HOLDER_TYPE"))

		shares := parse.EnsureNumber(firstValue(row, "HOLD_AMOUNT", "HOLD_NUM", "SHARES"))
		if shares != nil {
			rec.Fields["shares_held"] = int64(*shares)
		}
		ratio := parse.EnsurePercent(firstValue(row, "PERCENT", "HOLD_RATIO", "PCT"))
		if ratio == nil && shares != nil && totalShares > 0 {
			pct := *shares / totalShares * 100
			ratio = &pct
		}
		rec.Fields["holding_ratio"] = floatOrNil(ratio)
		rec.Fields["share_class"] = exchange.ShareClass(ent.stockCode)
		rec.Fields["restricted_flag"] = truthy(parse.Pick(row, "IS_RESTRICTED", "RESTRICTED"))
		rec.Fields["evidence_url"] = url
		rec.Fields["snapshot_date"] = s.Opts.SnapshotDate
		emit(rec)
	}
}

func (s *SSESource) countFetchFailure() {
	if s.Metrics != nil {
		s.Metrics.FetchFailures.WithLabelValues(s.Name()).Inc()
	}
}

// sseRows handles both commonQuery shapes: rows at "result" on plain
// queries, rows at pageHelp.data on paginated SOA queries.
func sseRows(payload map[string]any) []map[string]any {
	if rows := parse.Rows(payload); rows != nil {
		return rows
	}
	if data := parse.Dig(payload, "pageHelp", "data"); data != nil {
		return parse.Rows(map[string]any{"records": data})
	}
	return nil
}
