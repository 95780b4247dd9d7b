package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB
)

// envelope is the response wrapper every backend endpoint uses.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    json.RawMessage `json:"message"`
	Data       json.RawMessage `json:"data"`
}

// exchanger performs one logical request against the backend and decodes the
// response envelope.
type exchanger struct {
	httpClient *http.Client
	baseURL    *url.URL
}

func (exchange *exchanger) send(ctx context.Context, method string, path string, query url.Values, header http.Header, body []byte, contentType string, out any) error {
	target := exchange.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	var bodyReader io.Reader = http.NoBody
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("apiclient.request.build: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	request.Header.Set("Accept", "application/json")
	if request.Header.Get(requestIDHeader) == "" {
		request.Header.Set(requestIDHeader, uuid.NewString())
	}

	response, err := exchange.httpClient.Do(request)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return fmt.Errorf("apiclient.request %s %s: %w", method, path, err)
		}
		return fmt.Errorf("apiclient.request %s %s: %w: %w", method, path, ErrNetwork, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, defaultResponseBodyLimit+1))
	if err != nil {
		return fmt.Errorf("apiclient.response.read %s %s: %w: %w", method, path, ErrNetwork, err)
	}
	if int64(len(payload)) > defaultResponseBodyLimit {
		return fmt.Errorf("apiclient.response.read %s %s: body exceeds %d bytes", method, path, defaultResponseBodyLimit)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return newHTTPError(response.StatusCode, payload)
	}
	return decodeEnvelope(payload, out)
}

func decodeEnvelope(payload []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	var wrapper envelope
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return fmt.Errorf("apiclient.response.decode: %w", err)
	}
	if len(wrapper.Data) == 0 || bytes.Equal(wrapper.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(wrapper.Data, out); err != nil {
		return fmt.Errorf("apiclient.response.decode_data: %w", err)
	}
	return nil
}
