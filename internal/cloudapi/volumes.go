package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// VolumeService manages block volumes.
type VolumeService struct {
	client ClientInterface
}

// NewVolumeService creates a volume service backed by client.
func NewVolumeService(client ClientInterface) *VolumeService {
	return &VolumeService{client: client}
}

// Create allocates a new volume.
func (s *VolumeService) Create(ctx context.Context, req CreateVolumeRequest) (*Volume, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := s.client.NewRequest(ctx, http.MethodPost, "/volumes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var vol Volume
	if err := decodeJSON(resp, &vol); err != nil {
		return nil, err
	}
	return &vol, nil
}

// Get returns one volume by slug.
func (s *VolumeService) Get(ctx context.Context, slug string) (*Volume, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/volumes/"+slug, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var vol Volume
	if err := decodeJSON(resp, &vol); err != nil {
		return nil, err
	}
	return &vol, nil
}

// List returns every volume owned by the token's account.
func (s *VolumeService) List(ctx context.Context) ([]Volume, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/volumes", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var out struct {
		Volumes []Volume `json:"volumes"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Volumes, nil
}

// Delete removes the volume. Fails while a snapshot sourced from it is
// still finalizing.
func (s *VolumeService) Delete(ctx context.Context, slug string) error {
	req, err := s.client.NewRequest(ctx, http.MethodDelete, "/volumes/"+slug, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}
