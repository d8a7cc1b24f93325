package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"kaspas-storefront/pkg/response"
)

// ProgressFunc receives the number of body bytes sent so far and the total.
type ProgressFunc func(sent, total int64)

// Request enumerates everything a caller can configure on one API call.
// Cancellation comes from the context passed to Client.Do.
type Request struct {
	Method string
	// URL is relative to the client's base URL unless it is absolute.
	URL     string
	Data    interface{}
	Params  url.Values
	Headers http.Header
	// SkipAuth sends the request without an Authorization header. Such
	// requests never trigger a token refresh.
	SkipAuth bool

	OnUploadProgress ProgressFunc
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	method string
	url    string
}

// Decode unmarshals the whole body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// DecodeData unmarshals the "data" member of the response envelope into v.
func (r *Response) DecodeData(v interface{}) error {
	return response.DecodeData(r.Body, v)
}

func (r *Response) Message() string {
	return response.Message(r.Body)
}

// call tracks one logical request across its original dispatch and at most
// one retry.
type call struct {
	req         *Request
	method      string
	url         string
	body        []byte
	contentType string

	authenticated bool
	retried       bool
	sentToken     string
}

// encodeBody serialises Data once so the request can be replayed after a
// refresh.
func encodeBody(data interface{}) ([]byte, string, error) {
	switch v := data.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	case url.Values:
		return []byte(v.Encode()), "application/x-www-form-urlencoded", nil
	case io.Reader:
		b, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read request body: %w", err)
		}
		return b, "", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return b, "application/json", nil
	}
}

func resolveURL(baseURL, target string, params url.Values) (string, error) {
	full := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		full = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(target, "/")
	}

	if len(params) == 0 {
		return full, nil
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("invalid request url %q: %w", target, err)
	}
	query := u.Query()
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}

func isAuthMessage(message string) bool {
	return message == "Unauthorized request" || message == "Invalid Access Token"
}
