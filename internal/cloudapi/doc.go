// Package cloudapi is the HTTP client for the skybox cloud control
// plane and its per-region data plane.
//
// The control plane manages resources (compute units, volumes,
// snapshots) behind one JSON API; the data plane exposes exec, file
// upload, and log reads on a specific running unit in its region.
//
//	client := cloudapi.NewClient(token)
//	unit, err := client.Units.Create(ctx, cloudapi.CreateUnitRequest{...})
//	vols, err := client.Volumes.List(ctx)
//
// Requests that fail with a transport error or a 5xx are retried with
// linear backoff before surfacing. Non-2xx responses decode into
// *APIError carrying the backend status code, structured error code,
// and request id; transport failures surface as *NetworkError.
package cloudapi
