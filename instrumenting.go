package marketfit

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/flarexio/marketfit/opportunity"
)

func InstrumentingMiddleware(requestCount metrics.Counter, requestLatency metrics.Histogram, ideaCount metrics.Histogram) ServiceMiddleware {
	return func(next Service) Service {
		return &instrumentingMiddleware{
			requestCount:   requestCount,
			requestLatency: requestLatency,
			ideaCount:      ideaCount,
			next:           next,
		}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	ideaCount      metrics.Histogram
	next           Service
}

func (mw *instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	lvs := []string{"method", method, "error", errorLabel(err)}
	mw.requestCount.With(lvs...).Add(1)
	mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
}

func errorLabel(err error) string {
	if err != nil {
		return "true"
	}
	return "false"
}

func (mw *instrumentingMiddleware) GenerateIdeas(ctx context.Context, req GenerateRequest) (r *opportunity.Report, err error) {
	defer func(begin time.Time) {
		mw.observe("generate_ideas", begin, err)

		if err == nil {
			mw.ideaCount.With("source", r.Source.String()).Observe(float64(len(r.Ideas)))
		}
	}(time.Now())

	return mw.next.GenerateIdeas(ctx, req)
}

func (mw *instrumentingMiddleware) Report(id opportunity.ReportID) (r *opportunity.Report, err error) {
	defer func(begin time.Time) {
		mw.observe("report", begin, err)
	}(time.Now())

	return mw.next.Report(id)
}

func (mw *instrumentingMiddleware) Reports(limit int) (reports []*opportunity.Report, err error) {
	defer func(begin time.Time) {
		mw.observe("reports", begin, err)
	}(time.Now())

	return mw.next.Reports(limit)
}

func (mw *instrumentingMiddleware) DeleteReport(id opportunity.ReportID) (err error) {
	defer func(begin time.Time) {
		mw.observe("delete_report", begin, err)
	}(time.Now())

	return mw.next.DeleteReport(id)
}
