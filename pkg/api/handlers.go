package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/pkg/storage"
	"github.com/0xmhha/token-screener/pkg/token"
)

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

// handleGetToken serves GET /get_token/{address}
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	address, err := token.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.deps.Store.Get(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get token", zap.String("address", address.Hex()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load token")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleGetAllTokens serves GET /get_all_tokens. Without query parameters
// it returns the latest tokens view; with filters it queries storage.
func (s *Server) handleGetAllTokens(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Query()) > 0 {
		s.handleQueryTokens(w, r)
		return
	}

	records, err := s.deps.Cache.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list latest tokens", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest tokens")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleQueryTokens serves GET /tokens
func (s *Server) handleQueryTokens(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.deps.Store.Query(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to query tokens", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query tokens")
		return
	}
	if records == nil {
		records = []token.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// RefreshResponse is returned by the refresh endpoint
type RefreshResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// handleRefreshLatest serves GET|POST /refresh_latest_tokens
func (s *Server) handleRefreshLatest(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Cache.Refresh(r.Context()); err != nil {
		s.logger.Error("failed to refresh latest tokens", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to refresh latest tokens")
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{
		Message: "Latest tokens refreshed successfully",
		Count:   s.deps.Cache.Len(),
	})
}

// handleVersion handles the version endpoint
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	version := s.deps.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": version, "name": "token-screener"})
}

// ParseQuery maps URL parameters onto a token query.
//
// Supported: name, symbol, contractAddress, isVerified, isRenounced,
// isActive, fromDate, toDate (RFC 3339 or YYYY-MM-DD), sortBy, limit, offset.
func ParseQuery(v url.Values) (token.Query, error) {
	var q token.Query

	if s := v.Get("name"); s != "" {
		q.Name = &s
	}
	if s := v.Get("symbol"); s != "" {
		q.Symbol = &s
	}
	if s := v.Get("contractAddress"); s != "" {
		addr, err := token.ParseAddress(s)
		if err != nil {
			return q, err
		}
		normalized := token.NormalizeAddress(addr)
		q.ContractAddress = &normalized
	}

	var err error
	if q.IsVerified, err = parseBool(v, "isVerified"); err != nil {
		return q, err
	}
	if q.IsRenounced, err = parseBool(v, "isRenounced"); err != nil {
		return q, err
	}
	if q.IsActive, err = parseBool(v, "isActive"); err != nil {
		return q, err
	}
	if q.FromDate, err = parseDate(v, "fromDate"); err != nil {
		return q, err
	}
	if q.ToDate, err = parseDate(v, "toDate"); err != nil {
		return q, err
	}

	if q.SortBy, err = token.ParseSortKey(v.Get("sortBy")); err != nil {
		return q, err
	}

	if q.Limit, err = parseInt(v, "limit"); err != nil {
		return q, err
	}
	if q.Limit > constants.MaxQueryLimit {
		return q, fmt.Errorf("limit must not exceed %d", constants.MaxQueryLimit)
	}
	if q.Offset, err = parseInt(v, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func parseBool(v url.Values, key string) (*bool, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &b, nil
}

func parseDate(v url.Values, key string) (*time.Time, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &t, nil
}

func parseInt(v url.Values, key string) (int, error) {
	s := v.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
