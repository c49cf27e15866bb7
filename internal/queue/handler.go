package queue

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
)

// Filler fills the form and returns the document's content.
type Filler interface {
	FillBytes(ctx context.Context, values fill.Values) ([]byte, error)
}

type fillServe struct {
	svc       Filler
	transport *FillTransport
	publish   Publish
	logger    log.Logger
}

func (s *fillServe) Handle(ctx context.Context, message []byte) {
	request, err := s.transport.DecodeRequest(message)
	logger := log.With(s.logger, "method", "Handle", "uuid", request.UUID)

	var document []byte
	if err == nil {
		document, err = s.svc.FillBytes(ctx, request.Values)
	}
	if err != nil {
		level.Info(logger).Log("msg", "fill request", "err", err)
	}

	response, err := s.transport.EncodeResponse(request.UUID, document, err)
	if err != nil {
		level.Error(logger).Log("msg", "encode response", "err", err)
		return
	}
	if err := s.publish(response); err != nil {
		level.Error(logger).Log("msg", "publish response", "err", err)
	}
}

// NewFillHandler returns the handler for the request topic.
func NewFillHandler(
	svc Filler,
	transport *FillTransport,
	publish Publish,
	logger log.Logger,
) Handler {
	s := &fillServe{
		svc:       svc,
		transport: transport,
		publish:   publish,
		logger:    logger,
	}

	return s.Handle
}
