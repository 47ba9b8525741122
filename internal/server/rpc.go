package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/copyleftdev/hypersearch/internal/study"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type searchIDParams struct {
	SearchID string `json:"search_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil, nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID, nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "search.start":
		result, err = s.rpcStart(request.Params)
	case "search.status":
		result, err = s.rpcStatus(request.Params)
	case "search.cancel":
		result, err = s.rpcCancel(request.Params)
	default:
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID, nil)
		return
	}

	if err != nil {
		var invalid *invalidParamsError
		if errors.As(err, &invalid) {
			s.respondWithError(w, codeInvalidParams, "Invalid params", request.ID, err)
			return
		}
		s.respondWithError(w, codeServerError, "Server error", request.ID, err)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// decodeParams accepts params either as an object or as a single-element
// array holding the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return &invalidParamsError{fmt.Errorf("missing required parameters")}
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return &invalidParamsError{err}
		}
		if len(list) != 1 {
			return &invalidParamsError{fmt.Errorf("expected one parameter object, got %d", len(list))}
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &invalidParamsError{fmt.Errorf("invalid parameter format: %w", err)}
	}
	return nil
}

func decodeSearchID(raw json.RawMessage) (string, error) {
	var p searchIDParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.SearchID == "" {
		return "", &invalidParamsError{fmt.Errorf("search_id is required")}
	}
	return p.SearchID, nil
}

// rpcStart handles search.start. Params: a study definition.
// Returns: {"search_id": "...", "status": "pending"}
func (s *Server) rpcStart(raw json.RawMessage) (interface{}, error) {
	var def study.Definition
	if err := decodeParams(raw, &def); err != nil {
		return nil, err
	}
	state, err := s.startSearch(&def)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"search_id": state.ID,
		"status":    StatusPending,
	}, nil
}

// rpcStatus handles search.status. Params: {"search_id": "..."}
func (s *Server) rpcStatus(raw json.RawMessage) (interface{}, error) {
	id, err := decodeSearchID(raw)
	if err != nil {
		return nil, err
	}
	return s.searchStatus(id)
}

// rpcCancel handles search.cancel. Params: {"search_id": "..."}
func (s *Server) rpcCancel(raw json.RawMessage) (interface{}, error) {
	id, err := decodeSearchID(raw)
	if err != nil {
		return nil, err
	}
	if err := s.cancelSearch(id); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"search_id": id,
		"status":    StatusCancelled,
	}, nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}, cause error) {
	fields := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	e := rpcError{Code: code, Message: message}
	if cause != nil {
		e.Data = cause.Error()
		fields["error"] = e.Data
	}
	s.logger.Warn("JSON-RPC request error", fields)

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error":   e,
		"id":      id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
