package pelican

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrObjectNotFound signals that the requested path does not exist in the
// federation namespace.
var ErrObjectNotFound = errors.New("pelican: not found")

// Client provides read only access to a Pelican data federation. Objects
// are fetched through the federation director, which redirects to a cache
// or origin; listings use WebDAV PROPFIND, the protocol Pelican origins
// expose for namespace browsing.
type Client struct {
	federationURL string
	httpClient    http.Client
}

// FileInfo describes one entry in a federation namespace.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Modified string `json:"modified,omitempty"`
}

// New creates a client for the federation at federationURL
// (e.g. "https://osg-htc.org").
func New(federationURL string) *Client {
	federationURL = strings.TrimSuffix(federationURL, "/")
	if strings.HasPrefix(federationURL, "pelican://") {
		federationURL = "https://" + strings.TrimPrefix(federationURL, "pelican://")
	}

	return &Client{
		federationURL: federationURL,
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
}

// FederationURL returns the federation base URL.
func (c *Client) FederationURL() string {
	return c.federationURL
}

func (c *Client) objectURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.federationURL + path
}

// davMultistatus is the subset of a WebDAV multistatus response the
// listing code cares about.
type davMultistatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href     string `xml:"href"`
	Propstat struct {
		Prop struct {
			ContentLength string `xml:"getcontentlength"`
			LastModified  string `xml:"getlastmodified"`
			ResourceType  struct {
				Collection *struct{} `xml:"collection"`
			} `xml:"resourcetype"`
		} `xml:"prop"`
	} `xml:"propstat"`
}

// List enumerates the entries directly below path in the federation
// namespace.
func (c *Client) List(ctx context.Context, path string) ([]FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", c.objectURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Depth", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: path %s", ErrObjectNotFound, path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("federation returned status code %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var ms davMultistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}

	files := []FileInfo{}
	base := strings.TrimSuffix(path, "/")

	for _, r := range ms.Responses {
		name := strings.TrimSuffix(r.Href, "/")
		if idx := strings.Index(name, base); idx >= 0 {
			name = name[idx:]
		}
		if name == base {
			// the listed directory itself
			continue
		}

		entryType := "file"
		if r.Propstat.Prop.ResourceType.Collection != nil {
			entryType = "directory"
		}

		size, _ := strconv.ParseInt(r.Propstat.Prop.ContentLength, 10, 64)

		files = append(files, FileInfo{
			Name:     name,
			Size:     size,
			Type:     entryType,
			Modified: r.Propstat.Prop.LastModified,
		})
	}

	return files, nil
}

// Stat returns metadata for a single object.
func (c *Client) Stat(ctx context.Context, path string) (*FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.objectURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: object %s", ErrObjectNotFound, path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("federation returned status code %d for %s", resp.StatusCode, path)
	}

	return &FileInfo{
		Name:     path,
		Size:     resp.ContentLength,
		Type:     "file",
		Modified: resp.Header.Get("Last-Modified"),
	}, nil
}

// Read streams the object at path. The caller must close the returned
// reader. Redirects from the director to a cache are followed by the
// underlying client.
func (c *Client) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: object %s", ErrObjectNotFound, path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("federation returned status code %d for %s", resp.StatusCode, path)
	}

	return resp.Body, nil
}

// CheckHealth reports whether the federation publishes its discovery
// document.
func (c *Client) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.federationURL+"/.well-known/pelican-configuration", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
