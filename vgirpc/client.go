// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ErrClientClosed is returned by calls on a closed client.
var ErrClientClosed = errors.New("vgirpc: client closed")

// Transport carries one encoded request stream to a server and decodes the
// response stream.
type Transport interface {
	RoundTrip(ctx context.Context, method string, request []byte) (*Response, error)
	Close() error
}

// Client issues unary calls over a Transport. Log batches in responses are
// re-emitted through the client's logger.
type Client struct {
	transport  Transport
	logger     *slog.Logger
	logLevel   LogLevel
	propagator propagation.TextMapPropagator
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger that receives server log messages.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithLogLevel sets the minimum level the server should send back.
func WithLogLevel(level LogLevel) ClientOption {
	return func(c *Client) { c.logLevel = level }
}

// WithPropagator overrides otel.GetTextMapPropagator() for trace injection.
func WithPropagator(p propagation.TextMapPropagator) ClientOption {
	return func(c *Client) { c.propagator = p }
}

// NewClient returns a client over t.
func NewClient(t Transport, opts ...ClientOption) *Client {
	c := &Client{transport: t, logger: slog.Default(), logLevel: LogInfo}
	for _, opt := range opts {
		opt(c)
	}
	if c.propagator == nil {
		c.propagator = otel.GetTextMapPropagator()
	}
	return c
}

// Invoke sends params to method and returns the decoded response. The caller
// must Release it.
func (c *Client) Invoke(ctx context.Context, method string, params arrow.RecordBatch) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta := map[string]string{
		MetaRequestID: uuid.NewString(),
		MetaLogLevel:  string(c.logLevel),
	}
	c.propagator.Inject(ctx, propagation.MapCarrier(meta))

	var buf bytes.Buffer
	if err := WriteRequest(&buf, method, params, meta); err != nil {
		return nil, err
	}
	resp, err := c.transport.RoundTrip(ctx, method, buf.Bytes())
	if resp != nil {
		for _, m := range resp.Logs {
			c.logger.Log(ctx, m.Level.SlogLevel(), m.Message, append([]any{"method", method}, m.attrs()...)...)
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CallRow invokes a method registered with UnaryRow and returns the result
// row as Go values.
func (c *Client) CallRow(ctx context.Context, method string, paramsSchema *arrow.Schema, args []any) ([]any, error) {
	params, err := BuildRow(paramsSchema, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer params.Release()

	resp, err := c.Invoke(ctx, method, params)
	if err != nil {
		return nil, err
	}
	defer resp.Release()
	return ColumnValues(resp.Batch), nil
}

// Describe fetches the server's method catalog.
func (c *Client) Describe(ctx context.Context) ([]MethodDescription, error) {
	empty := emptyBatch(arrow.NewSchema(nil, nil))
	defer empty.Release()
	resp, err := c.Invoke(ctx, describeMethod, empty)
	if err != nil {
		return nil, err
	}
	defer resp.Release()
	return ParseDescribe(resp.Batch)
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Call invokes a method registered with Unary using the same P and R types.
func Call[R any, P any](ctx context.Context, c *Client, method string, params P) (R, error) {
	var zero R
	resp, err := invokeStruct(ctx, c, method, params)
	if err != nil {
		return zero, err
	}
	defer resp.Release()

	ci := columnIndex(resp.Batch, "result")
	if ci < 0 || resp.Batch.NumRows() != 1 {
		return zero, fmt.Errorf("%w: %s returned no result row", ErrProtocol, method)
	}
	var out R
	if err := setValue(reflect.ValueOf(&out).Elem(), resp.Batch.Column(ci), 0); err != nil {
		return zero, fmt.Errorf("%s result: %w", method, err)
	}
	return out, nil
}

// CallVoid invokes a method registered with UnaryVoid.
func CallVoid[P any](ctx context.Context, c *Client, method string, params P) error {
	resp, err := invokeStruct(ctx, c, method, params)
	if err != nil {
		return err
	}
	resp.Release()
	return nil
}

func invokeStruct[P any](ctx context.Context, c *Client, method string, params P) (*Response, error) {
	fields, err := structFields(reflect.TypeFor[P]())
	if err != nil {
		return nil, fmt.Errorf("%s params: %w", method, err)
	}
	batch, err := encodeStruct(fieldsSchema(fields), fields, reflect.ValueOf(params))
	if err != nil {
		return nil, fmt.Errorf("%s params: %w", method, err)
	}
	defer batch.Release()
	return c.Invoke(ctx, method, batch)
}

// StdioTransport speaks to a server over a pipe pair. The pipe carries one
// request at a time, so round trips are serialized.
type StdioTransport struct {
	mu     sync.Mutex
	r      io.Reader
	w      io.WriteCloser
	closed bool
}

// NewStdioTransport returns a transport reading responses from r and
// writing requests to w. Close closes w, which signals EOF to the server.
func NewStdioTransport(r io.Reader, w io.WriteCloser) *StdioTransport {
	return &StdioTransport{r: r, w: w}
}

func (t *StdioTransport) RoundTrip(ctx context.Context, _ string, request []byte) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := t.w.Write(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	return ReadResponse(t.r)
}

func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.w.Close()
}

// HTTPTransport posts requests to an HttpServer.
type HTTPTransport struct {
	baseURL string
	prefix  string
	client  *http.Client
	level   int
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = client }
}

// WithRequestCompression compresses request bodies with zstd at level
// (1-22). Zero sends them uncompressed.
func WithRequestCompression(level int) HTTPOption {
	return func(t *HTTPTransport) { t.level = level }
}

// NewHTTPTransport returns a transport for the server at baseURL.
func NewHTTPTransport(baseURL string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  defaultPrefix,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, method string, request []byte) (*Response, error) {
	body := request
	if t.level > 0 {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(t.level)))
		if err != nil {
			return nil, err
		}
		body = enc.EncodeAll(request, nil)
		enc.Close()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+t.prefix+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", arrowContentType)
	req.Header.Set("Accept-Encoding", "zstd")
	if t.level > 0 {
		req.Header.Set("Content-Encoding", "zstd")
	}

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var r io.Reader = httpResp.Body
	if httpResp.Header.Get("Content-Encoding") == "zstd" {
		dec, err := zstd.NewReader(httpResp.Body)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	resp, err := ReadResponse(r)
	if err != nil && errors.Is(err, ErrProtocol) && httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d: %w", method, httpResp.StatusCode, err)
	}
	return resp, err
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
