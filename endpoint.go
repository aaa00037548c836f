package marketfit

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"

	"github.com/flarexio/marketfit/opportunity"
)

type EndpointSet struct {
	GenerateIdeas endpoint.Endpoint
	Report        endpoint.Endpoint
	Reports       endpoint.Endpoint
	DeleteReport  endpoint.Endpoint
}

type GenerateIdeasResponse struct {
	ReportID opportunity.ReportID `json:"report_id"`
	RawCount int                  `json:"raw_count"`
	Ideas    []*opportunity.Idea  `json:"ideas"`
}

func GenerateIdeasEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(GenerateRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		r, err := svc.GenerateIdeas(ctx, req)
		if err != nil {
			return nil, err
		}

		resp := GenerateIdeasResponse{
			ReportID: r.ID,
			RawCount: r.RawCount,
			Ideas:    r.Ideas,
		}

		return resp, nil
	}
}

func ReportEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		id, ok := request.(opportunity.ReportID)
		if !ok {
			return nil, errors.New("invalid request")
		}

		r, err := svc.Report(id)
		if err != nil {
			return nil, err
		}

		return r, nil
	}
}

type ReportsRequest struct {
	Limit int
}

func ReportsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(ReportsRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		reports, err := svc.Reports(req.Limit)
		if err != nil {
			return nil, err
		}

		return reports, nil
	}
}

func DeleteReportEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		id, ok := request.(opportunity.ReportID)
		if !ok {
			return nil, errors.New("invalid request")
		}

		return nil, svc.DeleteReport(id)
	}
}
