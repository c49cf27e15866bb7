package queue

import (
	"encoding/json"
	"fmt"

	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
	"github.com/a3tai/sf2809-filler/internal/pdf/fill"
)

// Request is a fill request read from the request topic.
type Request struct {
	UUID   string      `json:"uuid"`
	Values fill.Values `json:"values"`
}

// Response is published for every request, successful or not.
type Response struct {
	UUID     string `json:"uuid"`
	Document []byte `json:"document,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// FillTransport converts between queue messages and fill requests.
type FillTransport struct{}

// NewFillTransport ...
func NewFillTransport() *FillTransport {
	return &FillTransport{}
}

// DecodeRequest parses message. A message that is not a request object is a
// malformed request; the UUID is still returned when it could be read.
func (t *FillTransport) DecodeRequest(message []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		var id struct {
			UUID string `json:"uuid"`
		}
		_ = json.Unmarshal(message, &id)
		return Request{UUID: id.UUID}, pdferrors.MalformedRequest(err)
	}
	if req.Values == nil {
		return req, pdferrors.MalformedRequest(fmt.Errorf("request %q has no values", req.UUID))
	}
	return req, nil
}

// EncodeResponse builds the response message for the request identified by
// uuid. err takes precedence over document.
func (t *FillTransport) EncodeResponse(uuid string, document []byte, err error) ([]byte, error) {
	res := Response{UUID: uuid}
	if err != nil {
		res.Error = err.Error()
		res.Kind = pdferrors.TypeOf(err).String()
	} else {
		res.Document = document
	}
	return json.Marshal(res)
}
