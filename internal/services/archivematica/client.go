package archivematica

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"fornax/internal/config"
	"fornax/internal/logging"
	"fornax/internal/services"
)

// Unit types the Archivematica API distinguishes.
const (
	UnitTransfer = "transfer"
	UnitIngest   = "ingest"
)

// StatusProcessing is the unit status reported while Archivematica is still
// working on a package.
const StatusProcessing = "PROCESSING"

// HTTPDoer abstracts the HTTP client for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one origin's Archivematica dashboard API.
type Client struct {
	origin string
	cfg    config.Archivematica
	http   HTTPDoer
	logger *slog.Logger
}

// Factory resolves a Client for a SIP's origin.
type Factory func(origin string) (*Client, error)

// NewClient builds a client for a single origin profile.
func NewClient(origin string, cfg config.Archivematica, doer HTTPDoer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		origin: origin,
		cfg:    cfg,
		http:   doer,
		logger: logging.NewComponentLogger(logger, "archivematica").With(
			logging.String(logging.FieldOrigin, origin)),
	}
}

// NewFactory returns a Factory that resolves origins against the loaded
// configuration.
func NewFactory(cfg *config.Config, doer HTTPDoer, logger *slog.Logger) Factory {
	return func(origin string) (*Client, error) {
		profile, err := cfg.Origin(origin)
		if err != nil {
			return nil, err
		}
		return NewClient(origin, profile, doer, logger), nil
	}
}

// Origin returns the origin this client serves.
func (c *Client) Origin() string {
	return c.origin
}

// StartTransfer asks Archivematica to begin a transfer of the zipped bag
// named after the identifier. The path is qualified with the transfer source
// location UUID and base64-encoded, as the dashboard API requires.
func (c *Client) StartTransfer(ctx context.Context, identifier string) error {
	qualified := fmt.Sprintf("%s:%s.tar.gz", c.cfg.LocationUUID, identifier)
	form := url.Values{}
	form.Set("name", identifier)
	form.Set("type", "zipped bag")
	form.Set("paths[]", base64.StdEncoding.EncodeToString([]byte(qualified)))

	var ignored map[string]any
	if err := c.postForm(ctx, "/api/transfer/start_transfer/", form, &ignored); err != nil {
		return services.Wrap(services.ErrExternal, "archivematica", "start transfer", identifier, err)
	}
	c.logger.Info("transfer started", logging.String(logging.FieldIdentifier, identifier))
	return nil
}

// ApproveTransfer approves the started transfer and returns the unit UUID
// Archivematica assigned to it.
func (c *Client) ApproveTransfer(ctx context.Context, identifier string) (string, error) {
	form := url.Values{}
	form.Set("type", "zipped bag")
	form.Set("directory", identifier+".tar.gz")

	var body struct {
		UUID string `json:"uuid"`
	}
	if err := c.postForm(ctx, "/api/transfer/approve_transfer/", form, &body); err != nil {
		return "", services.Wrap(services.ErrExternal, "archivematica", "approve transfer", identifier, err)
	}
	c.logger.Info("transfer approved",
		logging.String(logging.FieldIdentifier, identifier),
		logging.String("uuid", body.UUID))
	return body.UUID, nil
}

// UnitStatus describes the state of one transfer or ingest unit.
type UnitStatus struct {
	Status       string `json:"status"`
	Name         string `json:"name"`
	Microservice string `json:"microservice"`
	SIPUUID      string `json:"sip_uuid"`
}

// GetUnitStatus fetches the current status of a transfer or ingest unit.
func (c *Client) GetUnitStatus(ctx context.Context, unitType, uuid string) (UnitStatus, error) {
	var status UnitStatus
	path := fmt.Sprintf("/api/%s/status/%s/", unitType, uuid)
	if err := c.getJSON(ctx, path, &status); err != nil {
		return UnitStatus{}, services.Wrap(services.ErrExternal, "archivematica", "unit status", uuid, err)
	}
	return status, nil
}

// ProcessingConfig downloads the processing configuration named in the origin
// profile. Satisfies the restructure stage's config source.
func (c *Client) ProcessingConfig(ctx context.Context) ([]byte, error) {
	path := fmt.Sprintf("/api/processing-configuration/%s/", c.cfg.ProcessingConfig)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "archivematica", "processing config", c.cfg.ProcessingConfig, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrExternal, "archivematica", "processing config",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	return io.ReadAll(resp.Body)
}

// CompletedUnits lists the UUIDs of completed transfer or ingest units.
func (c *Client) CompletedUnits(ctx context.Context, unitType string) ([]string, error) {
	var body struct {
		Results []string `json:"results"`
	}
	path := fmt.Sprintf("/api/%s/completed/", unitType)
	if err := c.getJSON(ctx, path, &body); err != nil {
		return nil, services.Wrap(services.ErrExternal, "archivematica", "list completed", unitType, err)
	}
	return body.Results, nil
}

// CloseUnit hides a completed unit from the dashboard.
func (c *Client) CloseUnit(ctx context.Context, unitType, uuid string) error {
	path := fmt.Sprintf("/api/%s/%s/delete/", unitType, uuid)
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternal, "archivematica", "close unit", uuid, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternal, "archivematica", "close unit",
			fmt.Sprintf("%s: unexpected status %d", uuid, resp.StatusCode), nil)
	}
	return nil
}

// CloseCompleted hides every completed unit of the given type. Returns the
// closed UUIDs; when some cannot be closed the successfully closed set is
// still returned alongside an error naming the rest.
func (c *Client) CloseCompleted(ctx context.Context, unitType string) ([]string, error) {
	uuids, err := c.CompletedUnits(ctx, unitType)
	if err != nil {
		return nil, err
	}

	var closed, failed []string
	for _, uuid := range uuids {
		if err := c.CloseUnit(ctx, unitType, uuid); err != nil {
			c.logger.Warn("close failed",
				logging.String("unit_type", unitType),
				logging.String("uuid", uuid),
				logging.Error(err))
			failed = append(failed, uuid)
			continue
		}
		closed = append(closed, uuid)
	}
	if len(failed) > 0 {
		return closed, services.Wrap(services.ErrExternal, "archivematica", "close completed",
			fmt.Sprintf("%s units not closed: %s", unitType, strings.Join(failed, ", ")), nil)
	}
	return closed, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	full := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("ApiKey %s:%s", c.cfg.Username, c.cfg.APIKey))
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
