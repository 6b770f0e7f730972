// Package reporter posts simulated positions to the API the way a GPS tracker does.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ukydev/bus-tracker/internal/models"
)

// Reporter sends telemetry to POST {base}/buses/{id}/location.
type Reporter struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// New builds a reporter for the API rooted at baseURL, e.g. http://localhost:8080/api.
func New(baseURL, authToken string) *Reporter {
	return &Reporter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// InsertTelemetry reports t as a location update of its bus.
func (r *Reporter) InsertTelemetry(ctx context.Context, t models.Telemetry) error {
	lat, lon := t.Location.Lat, t.Location.Lon
	body, err := json.Marshal(models.LocationReport{
		Lat:         &lat,
		Lon:         &lon,
		Speed:       t.Speed,
		Bearing:     float64(t.Bearing),
		Altitude:    t.Altitude,
		CurrentStop: t.CurrentStop,
		NextStop:    t.NextStop,
		Stopped:     t.Stopped,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/buses/%s/location", r.baseURL, url.PathEscape(t.BusID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("report location of %s: %w", t.BusID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("report location of %s: status %d: %s", t.BusID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
