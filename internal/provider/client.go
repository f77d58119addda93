// Package provider talks to the panorama provider over HTTP.
package provider

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/lookaround-map/viewer/pkg/core"
)

// DefaultTimeout applies when New is given a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// Client handles communication with the panorama provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new provider client.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the provider root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the provider is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	resp, err := c.get(ctx, c.baseURL+"/")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Closest returns the panoramas closest to a location, nearest first.
func (c *Client) Closest(ctx context.Context, lat, lon float64) ([]core.Panorama, error) {
	return c.panoramas(ctx, "closest", lat, lon)
}

// Neighbors returns the panoramas around a location.
func (c *Client) Neighbors(ctx context.Context, lat, lon float64) ([]core.Panorama, error) {
	return c.panoramas(ctx, "neighbors", lat, lon)
}

func (c *Client) panoramas(ctx context.Context, route string, lat, lon float64) ([]core.Panorama, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/", c.baseURL, route, formatCoord(lat), formatCoord(lon))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", route, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", route, err)
	}
	return decodePanoramas(data)
}

// FacePath returns the provider path of a face image.
func FacePath(pano core.Panorama, face core.FaceIndex, quality core.Quality) string {
	return fmt.Sprintf("/pano/%s/%s/%d/%d/",
		url.PathEscape(pano.ID), url.PathEscape(pano.RegionID), quality, face)
}

// FaceURL returns the absolute URL of a face image.
func (c *Client) FaceURL(pano core.Panorama, face core.FaceIndex, quality core.Quality) string {
	return c.baseURL + FacePath(pano, face, quality)
}

// FetchFace downloads and decodes one face image. progress, when set,
// receives the downloaded fraction as the body arrives and 1 once decoded.
func (c *Client) FetchFace(ctx context.Context, pano core.Panorama, face core.FaceIndex, quality core.Quality, progress func(float64)) (image.Image, error) {
	resp, err := c.get(ctx, c.FaceURL(pano, face, quality))
	if err != nil {
		return nil, fmt.Errorf("face %d of %s: %w", face, pano.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face %d of %s returned status %d", face, pano.ID, resp.StatusCode)
	}

	body := &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	img, format, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding face %d of %s: %w", face, pano.ID, err)
	}
	if progress != nil {
		progress(1)
	}

	c.logger.Debug("Fetched face",
		"panorama", pano.ID,
		"face", int(face),
		"quality", int(quality),
		"format", format)
	return img, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.httpClient.Do(req)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
