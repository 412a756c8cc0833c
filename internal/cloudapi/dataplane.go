package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// NextOffsetHeader carries the byte offset to pass to the next log
// read.
const NextOffsetHeader = "X-Skybox-Next-Offset"

// Exec runs a command inside a running unit and waits for it.
func (s *UnitService) Exec(ctx context.Context, region, id string, req ExecRequest) (*ExecResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := s.client.NewDataRequest(ctx, region, http.MethodPost, "/units/"+id+"/exec", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var result ExecResult
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadFile writes content to path inside the unit's filesystem.
func (s *UnitService) UploadFile(ctx context.Context, region, id, path string, mode uint32, content []byte) error {
	q := url.Values{}
	q.Set("path", path)
	q.Set("mode", fmt.Sprintf("%o", mode))

	req, err := s.client.NewDataRequest(ctx, region, http.MethodPut, "/units/"+id+"/files?"+q.Encode(), bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

// ReadLogsOptions selects which part of the unit's append-only log to
// read. TailLines wins over Offset when both are set.
type ReadLogsOptions struct {
	Offset    int64
	TailLines int
}

// ReadLogs reads a chunk of the unit's log stream. The chunk's
// NextOffset is the position to resume from; it equals the request
// offset when no new bytes were available.
func (s *UnitService) ReadLogs(ctx context.Context, region, id string, opts ReadLogsOptions) (*LogChunk, error) {
	q := url.Values{}
	if opts.TailLines > 0 {
		q.Set("tail", strconv.Itoa(opts.TailLines))
	} else {
		q.Set("offset", strconv.FormatInt(opts.Offset, 10))
	}

	req, err := s.client.NewDataRequest(ctx, region, http.MethodGet, "/units/"+id+"/logs?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read log chunk: %w", err)
	}

	chunk := &LogChunk{Data: data, NextOffset: opts.Offset + int64(len(data))}
	if raw := resp.Header.Get(NextOffsetHeader); raw != "" {
		if next, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			chunk.NextOffset = next
		}
	}
	return chunk, nil
}

// AppendLog writes a line to the unit's log stream. Background
// provisioning uses this so failures show up in the session's own
// logs.
func (s *UnitService) AppendLog(ctx context.Context, region, id string, line string) error {
	req, err := s.client.NewDataRequest(ctx, region, http.MethodPost, "/units/"+id+"/logs", bytes.NewReader([]byte(line)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}
