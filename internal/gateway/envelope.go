package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
)

// envelope is the single response shape served by the Clutch API:
//
//	{"success": true, "data": <payload>, "message": "optional"}
//
// Lists are a JSON array in data; a paged list also carries pagination. Any
// other top-level field is a decode error.
type envelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// Pagination describes one page of a list requested with page or limit.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Page is a decoded list together with its pagination.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

func (p *Page[T]) target() any { return &p.Items }

func (p *Page[T]) paginate(meta *Pagination) error {
	if meta == nil {
		return errors.New("response has no pagination")
	}
	p.Pagination = *meta
	return nil
}

type paged interface {
	target() any
	paginate(meta *Pagination) error
}

func parseEnvelope(body []byte) (envelope, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return envelope{}, errors.Wrap(err, "decode envelope")
	}
	if dec.More() {
		return envelope{}, errors.New("trailing data after envelope")
	}
	if env.Success == nil {
		return envelope{}, errors.New("envelope is missing success")
	}
	return env, nil
}

// decodeResponse maps an HTTP status and body onto out or a typed *Error.
func decodeResponse(op string, status int, body []byte, out any) error {
	if status < 200 || status > 299 {
		failure := &Error{Kind: statusKind(status), Op: op, Status: status, Message: http.StatusText(status)}
		if env, err := parseEnvelope(body); err == nil && env.Message != "" {
			failure.Message = env.Message
		}
		return failure
	}

	env, err := parseEnvelope(body)
	if err != nil {
		return &Error{Kind: KindDecode, Op: op, Status: status, Err: err}
	}
	if !*env.Success {
		return &Error{Kind: KindRejected, Op: op, Status: status, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if page, ok := out.(paged); ok {
		if err := page.paginate(env.Pagination); err != nil {
			return &Error{Kind: KindDecode, Op: op, Status: status, Err: err}
		}
		out = page.target()
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return &Error{Kind: KindDecode, Op: op, Status: status, Err: errors.New("response has no data")}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindDecode, Op: op, Status: status, Err: errors.Wrap(err, "decode data")}
	}
	return nil
}

func statusKind(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return KindRejected
	default:
		return KindStatus
	}
}
