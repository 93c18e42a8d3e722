package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Store is the row-oriented backend the command set operates on: equality
// filtered selects, insert returning the row, update and delete by id.
type Store interface {
	List(ctx context.Context, table string, filter map[string]string, limit int) ([]map[string]any, error)
	Insert(ctx context.Context, table string, row map[string]any) (map[string]any, error)
	Update(ctx context.Context, table, id string, patch map[string]any) (map[string]any, error)
	Delete(ctx context.Context, table, id string) error
}

// Dialer opens a store session from credentials. The session lives in
// memory only; nothing is written to durable local state.
type Dialer func(ctx context.Context, url, key string) (Store, error)

var errNotConnected = errors.New("não conectado. Use /supabase connect <url> <key>")

// HTTPStore talks to the row store API under /v1.
type HTTPStore struct {
	base string
	key  string
	hc   *http.Client
}

// Dial validates the credentials with a cheap authenticated read and
// returns a live store session.
func Dial(ctx context.Context, base, key string) (Store, error) {
	s := &HTTPStore{base: strings.TrimRight(base, "/"), key: key, hc: &http.Client{}}
	if _, err := s.List(ctx, "projects", nil, 1); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HTTPStore) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s (HTTP %d)", e.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.RawMessage(data), nil
}

func (s *HTTPStore) List(ctx context.Context, table string, filter map[string]string, limit int) ([]map[string]any, error) {
	q := url.Values{}
	for k, v := range filter {
		q.Set(k, v)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/" + url.PathEscape(table)
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	raw, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *HTTPStore) Insert(ctx context.Context, table string, row map[string]any) (map[string]any, error) {
	raw, err := s.do(ctx, http.MethodPost, "/v1/"+url.PathEscape(table), row)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPStore) Update(ctx context.Context, table, id string, patch map[string]any) (map[string]any, error) {
	raw, err := s.do(ctx, http.MethodPatch, "/v1/"+url.PathEscape(table)+"/"+url.PathEscape(id), patch)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HTTPStore) Delete(ctx context.Context, table, id string) error {
	_, err := s.do(ctx, http.MethodDelete, "/v1/"+url.PathEscape(table)+"/"+url.PathEscape(id), nil)
	return err
}
