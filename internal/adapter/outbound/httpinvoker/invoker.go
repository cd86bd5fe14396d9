package httpinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/i2y/mcptrace/internal/usecase"
)

const defaultContentType = "application/json"

// Invoker forwards tool calls to an HTTP upstream.
type Invoker struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a new HTTP Invoker.
func New(client *http.Client, logger *slog.Logger) *Invoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &Invoker{
		client: client,
		logger: logger.With("component", "http_invoker"),
	}
}

// Invoke maps the tool arguments onto path placeholders, query parameters and
// a request body, sends the request and decodes the response.
func (i *Invoker) Invoke(ctx context.Context, details usecase.InvocationDetails, params map[string]interface{}) (interface{}, error) {
	log := i.logger.With(
		slog.String("method", details.HTTPMethod),
		slog.String("path", details.HTTPPath),
		slog.String("host", details.Host),
	)

	target, rest, err := buildURL(details, params)
	if err != nil {
		log.Error("Failed to build upstream URL", slog.Any("error", err))
		return nil, err
	}

	body, contentType, err := buildBody(details, rest)
	if err != nil {
		log.Error("Failed to build request body", slog.Any("error", err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, details.HTTPMethod, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range details.HeaderParams {
		req.Header.Set(key, value)
	}

	log = log.With(slog.String("url", target.String()))
	log.Debug("Executing HTTP request")
	resp, err := i.client.Do(req)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		return nil, fmt.Errorf("request execution failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("Upstream returned non-success status", slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return decodeResponse(resp.Header.Get("Content-Type"), raw), nil
}

// buildURL substitutes {name} placeholders and moves configured query
// parameters into the URL. It returns the arguments left for the body.
func buildURL(details usecase.InvocationDetails, params map[string]interface{}) (*url.URL, map[string]interface{}, error) {
	base, err := url.Parse(details.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid host URL %s: %w", details.Host, err)
	}

	isQuery := make(map[string]bool, len(details.QueryParams))
	for _, name := range details.QueryParams {
		isQuery[name] = true
	}

	path := details.HTTPPath
	query := url.Values{}
	rest := make(map[string]interface{})
	for k, v := range params {
		placeholder := "{" + k + "}"
		switch {
		case strings.Contains(path, placeholder):
			path = strings.ReplaceAll(path, placeholder, fmt.Sprint(v))
		case isQuery[k]:
			addQuery(query, k, v)
		default:
			rest[k] = v
		}
	}

	base.Path = strings.TrimRight(base.Path, "/") + path
	if len(query) > 0 {
		base.RawQuery = query.Encode()
	}
	return base, rest, nil
}

func addQuery(q url.Values, key string, v interface{}) {
	if items, ok := v.([]interface{}); ok {
		for _, item := range items {
			q.Add(key, fmt.Sprint(item))
		}
		return
	}
	q.Add(key, fmt.Sprint(v))
}

// buildBody returns nil for methods without a body.
func buildBody(details usecase.InvocationDetails, rest map[string]interface{}) (io.Reader, string, error) {
	switch strings.ToUpper(details.HTTPMethod) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, "", nil
	}

	contentType := details.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	var payload interface{} = rest
	if details.BodyParam != "" {
		v, ok := rest[details.BodyParam]
		if !ok {
			return nil, "", nil
		}
		payload = v
	} else if len(rest) == 0 {
		return nil, "", nil
	}

	if !strings.Contains(contentType, "json") {
		if s, ok := payload.(string); ok {
			return strings.NewReader(s), contentType, nil
		}
		return nil, "", fmt.Errorf("cannot encode body for Content-Type %s", contentType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(data), contentType, nil
}

// decodeResponse returns decoded JSON when the upstream says it sent JSON and
// the raw text otherwise.
func decodeResponse(contentType string, raw []byte) interface{} {
	if len(raw) == 0 {
		return ""
	}
	if strings.Contains(contentType, "json") {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}
