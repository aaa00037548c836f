package marketfit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/flarexio/marketfit/opportunity"
)

func LoggingMiddleware(log *zap.Logger) ServiceMiddleware {
	return func(next Service) Service {
		return &loggingMiddleware{
			log.With(
				zap.String("service", "marketfit"),
				zap.String("middleware", "logging"),
			),
			next,
		}
	}
}

type loggingMiddleware struct {
	log  *zap.Logger
	next Service
}

func (mw *loggingMiddleware) GenerateIdeas(ctx context.Context, req GenerateRequest) (*opportunity.Report, error) {
	log := mw.log.With(
		zap.String("action", "generate_ideas"),
		zap.String("source", req.Source),
	)

	if len(req.Subreddits) > 0 {
		log = log.With(zap.String("subreddits", strings.Join(req.Subreddits, ",")))
	}

	if req.AppName != "" {
		log = log.With(
			zap.String("app_name", req.AppName),
			zap.String("platform", req.Platform),
		)
	}

	r, err := mw.next.GenerateIdeas(ctx, req)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("ideas generated",
		zap.String("report_id", r.ID.String()),
		zap.Int("raw_count", r.RawCount),
		zap.Int("ideas", len(r.Ideas)),
	)
	return r, nil
}

func (mw *loggingMiddleware) Report(id opportunity.ReportID) (*opportunity.Report, error) {
	log := mw.log.With(
		zap.String("action", "report"),
		zap.String("report_id", id.String()),
	)

	r, err := mw.next.Report(id)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("report found")
	return r, nil
}

func (mw *loggingMiddleware) Reports(limit int) ([]*opportunity.Report, error) {
	log := mw.log.With(
		zap.String("action", "reports"),
		zap.Int("limit", limit),
	)

	reports, err := mw.next.Reports(limit)
	if err != nil {
		log.Error(err.Error())
		return nil, err
	}

	log.Info("reports listed", zap.Int("count", len(reports)))
	return reports, nil
}

func (mw *loggingMiddleware) DeleteReport(id opportunity.ReportID) error {
	log := mw.log.With(
		zap.String("action", "delete_report"),
		zap.String("report_id", id.String()),
	)

	if err := mw.next.DeleteReport(id); err != nil {
		log.Error(err.Error())
		return err
	}

	log.Info("report deleted")
	return nil
}
