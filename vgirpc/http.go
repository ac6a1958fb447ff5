// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgirpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/klauspost/compress/zstd"
)

const (
	arrowContentType = "application/vnd.apache.arrow.stream"
	defaultPrefix    = "/vgi"
	defaultMaxBody   = 64 << 20
)

// HttpServer serves RPC requests over HTTP.
//
//	POST {prefix}/{method}   unary call, Arrow IPC request and response bodies
//	GET  {prefix}            HTML page describing the registered methods
type HttpServer struct {
	server           *Server
	prefix           string
	mux              *http.ServeMux
	compressionLevel int
	maxBody          int64
}

// NewHttpServer creates a new HTTP server wrapping an RPC server.
func NewHttpServer(server *Server) *HttpServer {
	h := &HttpServer{
		server:  server,
		prefix:  defaultPrefix,
		maxBody: defaultMaxBody,
	}
	h.mux = http.NewServeMux()
	h.mux.HandleFunc(fmt.Sprintf("POST %s/{method}", h.prefix), h.handleUnary)
	h.mux.HandleFunc(fmt.Sprintf("GET %s", h.prefix), h.handleDescribePage)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/{$}", h.prefix), h.handleDescribePage)
	h.mux.HandleFunc("/", h.handleNotFound)
	return h
}

// SetCompressionLevel enables zstd response compression at level (1-22) for
// clients that send Accept-Encoding: zstd. Zero disables it.
func (h *HttpServer) SetCompressionLevel(level int) {
	h.compressionLevel = level
}

// SetMaxRequestBytes bounds the decoded request body size.
func (h *HttpServer) SetMaxRequestBytes(n int64) {
	h.maxBody = n
}

// ServeHTTP implements http.Handler.
func (h *HttpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleUnary dispatches a unary RPC call.
func (h *HttpServer) handleUnary(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")

	if ct := r.Header.Get("Content-Type"); ct != arrowContentType {
		h.writeHttpError(w, r, http.StatusUnsupportedMediaType,
			fmt.Errorf("unsupported content type: %s", ct), nil)
		return
	}

	var body io.Reader = http.MaxBytesReader(w, r.Body, h.maxBody)
	if r.Header.Get("Content-Encoding") == "zstd" {
		dec, err := zstd.NewReader(body)
		if err != nil {
			h.writeHttpError(w, r, http.StatusBadRequest, err, nil)
			return
		}
		defer dec.Close()
		body = io.LimitReader(dec, h.maxBody)
	}

	req, err := ReadRequest(body)
	if err != nil {
		h.writeHttpError(w, r, http.StatusBadRequest, err, nil)
		return
	}
	defer req.Batch.Release()

	if req.Method != method {
		h.writeHttpError(w, r, http.StatusBadRequest, &RpcError{
			Type:    "ProtocolError",
			Message: fmt.Sprintf("URL method %q does not match request metadata %q", method, req.Method),
		}, nil)
		return
	}
	req.Metadata["remote_addr"] = r.RemoteAddr
	req.Metadata["user_agent"] = r.UserAgent()

	resp := h.server.dispatch(r.Context(), req)
	defer resp.release()

	var buf bytes.Buffer
	if err := h.server.writeResponse(&buf, resp, req.RequestID); err != nil {
		h.server.logger.Error("failed to encode http response", "method", method, "err", err)
		h.writeHttpError(w, r, http.StatusInternalServerError, err, nil)
		return
	}
	h.writeArrow(w, r, statusFor(resp.err), buf.Bytes())
}

// statusFor maps a handler error onto an HTTP status. The body still carries
// the EXCEPTION batch.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rpcErr *RpcError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Type {
		case "AttributeError":
			return http.StatusNotFound
		case "TypeError", "ValueError":
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (h *HttpServer) writeHttpError(w http.ResponseWriter, r *http.Request, statusCode int, err error, schema *arrow.Schema) {
	if schema == nil {
		schema = arrow.NewSchema(nil, nil)
	}
	var buf bytes.Buffer
	_ = WriteErrorResponse(&buf, schema, err, h.server.serverID, "")
	h.writeArrow(w, r, statusCode, buf.Bytes())
}

func (h *HttpServer) writeArrow(w http.ResponseWriter, r *http.Request, statusCode int, data []byte) {
	w.Header().Set("Content-Type", arrowContentType)
	if h.compressionLevel > 0 && acceptsZstd(r) {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(h.compressionLevel)))
		if err == nil {
			data = enc.EncodeAll(data, nil)
			enc.Close()
			w.Header().Set("Content-Encoding", "zstd")
		}
	}
	w.WriteHeader(statusCode)
	_, _ = w.Write(data)
}

func acceptsZstd(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if name == "zstd" {
			return true
		}
	}
	return false
}
