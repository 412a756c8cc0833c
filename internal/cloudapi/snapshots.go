package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// SnapshotService manages volume snapshots.
type SnapshotService struct {
	client ClientInterface
}

// NewSnapshotService creates a snapshot service backed by client.
func NewSnapshotService(client ClientInterface) *SnapshotService {
	return &SnapshotService{client: client}
}

// Create starts capturing a snapshot from a volume. The returned
// snapshot may still be finalizing.
func (s *SnapshotService) Create(ctx context.Context, req CreateSnapshotRequest) (*Snapshot, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := s.client.NewRequest(ctx, http.MethodPost, "/snapshots", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := decodeJSON(resp, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get returns one snapshot by slug.
func (s *SnapshotService) Get(ctx context.Context, slug string) (*Snapshot, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/snapshots/"+slug, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := decodeJSON(resp, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns every snapshot owned by the token's account.
func (s *SnapshotService) List(ctx context.Context) ([]Snapshot, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/snapshots", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var out struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Snapshots, nil
}

// Delete removes the snapshot.
func (s *SnapshotService) Delete(ctx context.Context, slug string) error {
	req, err := s.client.NewRequest(ctx, http.MethodDelete, "/snapshots/"+slug, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}
