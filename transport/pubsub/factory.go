package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/marketfit"
)

// RemoteError carries the code and description of a failed micro request.
type RemoteError struct {
	Code        string
	Description string
}

func (e *RemoteError) Error() string {
	return e.Code + ": " + e.Description
}

// Requester is the part of *nats.Conn the client endpoints need.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

func GenerateIdeasFactory(nc Requester, timeout time.Duration) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		return GenerateIdeasEndpoint(nc, instance+".generate", timeout), nil, nil
	}
}

func GenerateIdeasEndpoint(nc Requester, topic string, timeout time.Duration) endpoint.Endpoint {
	return func(ctx context.Context, request any) (response any, err error) {
		req, ok := request.(marketfit.GenerateRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		data, err := json.Marshal(&req)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		msg, err := nc.RequestWithContext(ctx, topic, data)
		if err != nil {
			return nil, err
		}

		if code := msg.Header.Get(micro.ErrorCodeHeader); code != "" {
			return nil, &RemoteError{
				Code:        code,
				Description: msg.Header.Get(micro.ErrorHeader),
			}
		}

		var resp marketfit.GenerateIdeasResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			return nil, err
		}

		return resp, nil
	}
}
