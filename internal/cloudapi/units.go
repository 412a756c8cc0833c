package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ClientInterface defines the methods services need from Client.
type ClientInterface interface {
	NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error)
	NewDataRequest(ctx context.Context, region, method, path string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// UnitService manages compute units.
type UnitService struct {
	client ClientInterface
}

// NewUnitService creates a unit service backed by client.
func NewUnitService(client ClientInterface) *UnitService {
	return &UnitService{client: client}
}

// Create boots a new unit on the requested volume and returns it once
// the control plane has accepted the boot.
func (s *UnitService) Create(ctx context.Context, req CreateUnitRequest) (*Unit, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := s.client.NewRequest(ctx, http.MethodPost, "/units", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var unit Unit
	if err := decodeJSON(resp, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// Get returns one unit by id.
func (s *UnitService) Get(ctx context.Context, id string) (*Unit, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/units/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var unit Unit
	if err := decodeJSON(resp, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// List returns every unit owned by the token's account.
func (s *UnitService) List(ctx context.Context) ([]Unit, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/units", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var out struct {
		Units []Unit `json:"units"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Units, nil
}

// Kill tears the unit down. The backing volume survives.
func (s *UnitService) Kill(ctx context.Context, id string) error {
	req, err := s.client.NewRequest(ctx, http.MethodDelete, "/units/"+id, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}
