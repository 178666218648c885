package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"cnpulse/internal/metrics"
	"cnpulse/internal/parse"
	"cnpulse/internal/record"
)

const (
	bseBaseURL = "https://www.bseinfo.net"

	// bseCodeStart..bseCodeEnd is the Beijing listed-company code range.
	// There is no listing endpoint, so discovery is a range scan: codes
	// with an empty baseinfo are unassigned and skipped.
	bseCodeStart = 920001
	bseCodeEnd   = 920992
)

// BSESource crawls the Beijing exchange company pages. The portal has no
// company-list XHR, so the universe is a scan over the known code range,
// gated by a cookie bootstrap against the listing landing page.
type BSESource struct {
	Client  *Client
	BaseURL string
	Opts    Options
	Logger  *slog.Logger
	Metrics *metrics.Pipeline
}

func (s *BSESource) Name() string { return "bse" }

func (s *BSESource) base() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return bseBaseURL
}

func (s *BSESource) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *BSESource) referer() string {
	return s.base() + "/nq/listedcompany.html"
}

// Crawl bootstraps session cookies, then scans the code range (or the
// explicit code list). A failed bootstrap is a discovery failure: without
// cookies every detail call would be rejected.
func (s *BSESource) Crawl(ctx context.Context, emit Emit) error {
	if err := s.Client.Bootstrap(ctx, s.referer()); err != nil {
		if s.Metrics != nil {
			s.Metrics.DiscoveryFailures.WithLabelValues(s.Name()).Inc()
		}
		return fmt.Errorf("discovery (cookie bootstrap): %w", err)
	}

	codes := s.Opts.Codes
	if len(codes) == 0 {
		codes = make([]string, 0, bseCodeEnd-bseCodeStart+1)
		for code := bseCodeStart; code <= bseCodeEnd; code++ {
			codes = append(codes, strconv.Itoa(code))
		}
	}
	codes = limitRows(codes, s.Opts.Limit)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency())
	for _, code := range codes {
		group.Go(func() error {
			s.fetchCompany(gctx, code, emit)
			return nil
		})
	}
	return group.Wait()
}

func (s *BSESource) concurrency() int {
	if s.Opts.Concurrency > 0 {
		return s.Opts.Concurrency
	}
	return 2
}

// fetchCompany pulls one company's baseinfo JSONP. An empty baseinfo means
// no company is assigned to the code; that is a silent skip, not a failure.
func (s *BSESource) fetchCompany(ctx context.Context, code string, emit Emit) {
	url := fmt.Sprintf("%s/nqhqController/detailCompany.do?zqdm=%s&xxfcbj=2", s.base(), code)
	payload, err := s.Client.GetJSON(ctx, url, s.referer())
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.FetchFailures.WithLabelValues(s.Name()).Inc()
		}
		s.logger().Warn("company fetch failed",
			slog.String("code", code),
			slog.String("error", err.Error()))
		return
	}

	baseinfo, _ := payload["baseinfo"].(map[string]any)
	if baseinfo == nil {
		return
	}
	stockCode := parse.Pick(baseinfo, "stockCode")
	name := parse.Pick(baseinfo, "name")
	if stockCode == "" && name == "" {
		return
	}
	if stockCode == "" {
		stockCode = code
	}

	rec := record.New(record.TypeBSECompany)
	rec.Fields["issuer_code"] = stockCode
	rec.Fields["company_name_ch"] = orNil(name)
	rec.Fields["industry_csic"] = orNil(parse.Pick(baseinfo, "industry"))
	rec.Fields["registered_capital"] = floatOrNil(parse.EnsureNumber(baseinfo["totalStockEquity"]))
	rec.Fields["established_date"] = orNil(parse.FormatDate(parse.Pick(baseinfo, "publishingDate")))
	rec.Fields["registered_address"] = orNil(parse.Pick(baseinfo, "area"))
	rec.Fields["disclosure_lang"] = "cn"
	rec.Fields["isin"] = orNil(maybeISIN(parse.Pick(baseinfo, "ISIN")))
	rec.Fields["listing_date"] = orNil(parse.FormatDate(parse.Pick(baseinfo, "listingDate")))
	rec.Fields["broker"] = orNil(parse.Pick(baseinfo, "broker"))
	rec.Fields["evidence_url"] = url
	rec.Fields["snapshot_date"] = s.Opts.SnapshotDate
	emit(rec)
}
