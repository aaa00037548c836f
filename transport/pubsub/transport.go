package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go/micro"
	"go.uber.org/zap"

	"github.com/flarexio/core/model"
	"github.com/flarexio/marketfit"
	"github.com/flarexio/marketfit/opportunity"
)

func GenerateIdeasHandler(endpoint endpoint.Endpoint, log *zap.Logger) micro.HandlerFunc {
	return func(r micro.Request) {
		var req marketfit.GenerateRequest
		if err := json.Unmarshal(r.Data(), &req); err != nil {
			r.Error("400", err.Error(), nil)
			return
		}

		ctx := context.WithValue(context.Background(), model.Logger, log)
		resp, err := endpoint(ctx, req)
		if err != nil {
			code := errorCode(err)
			r.Error(strconv.Itoa(code), err.Error(), nil)
			return
		}

		r.RespondJSON(&resp)
	}
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, opportunity.ErrAppNotFound):
		return 404

	case errors.Is(err, opportunity.ErrInvalidSource),
		errors.Is(err, opportunity.ErrEmptySubreddits),
		errors.Is(err, opportunity.ErrEmptyAppName):
		return 400

	default:
		return 417
	}
}
