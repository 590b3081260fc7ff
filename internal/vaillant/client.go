package vaillant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://smart.vaillant.com/mobile/api/v4"

	defaultTimeout = 30 * time.Second
)

// Config holds the account and endpoint settings of a Client.
type Config struct {
	BaseURL      string
	Username     string
	Password     string
	SmartphoneID string
	// Serial selects a facility; empty means the first one of the account.
	Serial  string
	Timeout time.Duration
}

// Client talks to the multiMATIC cloud API and keeps the latest snapshot of
// the facility. All methods are safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time

	sessionMu sync.Mutex
	loggedIn  bool
	serial    string

	mu     sync.RWMutex
	system *System
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrAuthentication)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SmartphoneID == "" {
		cfg.SmartphoneID = uuid.NewString()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Jar: jar, Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
		serial: cfg.Serial,
	}, nil
}

// Login opens a new API session. It is called lazily by UpdateSystem and
// again whenever the API answers 401.
func (c *Client) Login(ctx context.Context) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	c.loggedIn = false

	var token envelope[tokenResponse]
	err := c.do(ctx, http.MethodPost, pathTokenNew, tokenRequest{
		SmartphoneID: c.cfg.SmartphoneID,
		Username:     c.cfg.Username,
		Password:     c.cfg.Password,
	}, &token)
	if err != nil {
		return fmt.Errorf("failed to request auth token: %w", err)
	}
	if token.Body.AuthToken == "" {
		return fmt.Errorf("%w: empty auth token", ErrAuthentication)
	}

	err = c.do(ctx, http.MethodPost, pathAuthenticate, authenticateRequest{
		SmartphoneID: c.cfg.SmartphoneID,
		Username:     c.cfg.Username,
		AuthToken:    token.Body.AuthToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	c.loggedIn = true
	c.logger.Info("Logged in to vaillant API", zap.String("user", c.cfg.Username))
	return nil
}

// Logout ends the session. It is a no-op when no session is open.
func (c *Client) Logout(ctx context.Context) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if !c.loggedIn {
		return nil
	}
	c.loggedIn = false
	if err := c.do(ctx, http.MethodPost, pathLogout, nil, nil); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// UpdateSystem fetches a fresh snapshot and swaps it in. On error the
// previous snapshot stays in place.
func (c *Client) UpdateSystem(ctx context.Context) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if !c.loggedIn {
		if err := c.loginLocked(ctx); err != nil {
			return err
		}
	}

	facility, err := c.facility(ctx)
	if err != nil {
		return err
	}

	var status envelope[statusResponse]
	if err := c.get(ctx, facilityPath(facility.Serial, "/system/v1/status"), &status); err != nil {
		return fmt.Errorf("failed to fetch system status: %w", err)
	}

	var control envelope[systemControlResponse]
	if err := c.get(ctx, facilityPath(facility.Serial, "/systemcontrol/v1"), &control); err != nil {
		return fmt.Errorf("failed to fetch system control: %w", err)
	}

	var rooms envelope[roomsResponse]
	if err := c.get(ctx, facilityPath(facility.Serial, "/rbr/v1/rooms"), &rooms); err != nil {
		return fmt.Errorf("failed to fetch rooms: %w", err)
	}

	var hvac envelope[hvacStateResponse]
	if err := c.get(ctx, facilityPath(facility.Serial, "/hvacstate/v1/overview"), &hvac); err != nil {
		return fmt.Errorf("failed to fetch hvac state: %w", err)
	}

	now := c.now()
	system := &System{
		Facility:     facility,
		Rooms:        rooms.Body.toRooms(),
		Circulation:  control.Body.toCirculation(now),
		BoilerStatus: hvac.Body.toBoilerStatus(status.Body),
		FetchedAt:    now,
	}

	c.mu.Lock()
	c.system = system
	c.mu.Unlock()

	c.logger.Debug("System updated",
		zap.String("facility", facility.Serial),
		zap.Int("rooms", len(system.Rooms)),
		zap.Bool("circulation", system.Circulation != nil),
		zap.Bool("boiler_status", system.BoilerStatus != nil))
	return nil
}

func (c *Client) facility(ctx context.Context) (Facility, error) {
	var resp envelope[facilitiesResponse]
	if err := c.get(ctx, pathFacilities, &resp); err != nil {
		return Facility{}, fmt.Errorf("failed to list facilities: %w", err)
	}

	for _, f := range resp.Body.FacilitiesList {
		if c.serial == "" || f.SerialNumber == c.serial {
			c.serial = f.SerialNumber
			return Facility{Serial: f.SerialNumber, Name: f.Name}, nil
		}
	}
	if c.serial != "" {
		return Facility{}, fmt.Errorf("%w: serial %s", ErrNoFacility, c.serial)
	}
	return Facility{}, ErrNoFacility
}

// System returns the latest snapshot, nil before the first successful
// UpdateSystem.
func (c *Client) System() *System {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.system
}

func (c *Client) FindRoom(id string) *Room {
	return c.System().FindRoom(id)
}

func (c *Client) FindCirculation(id string) *Circulation {
	return c.System().FindCirculation(id)
}

func (c *Client) FindBoilerStatus(deviceName string) *BoilerStatus {
	return c.System().FindBoilerStatus(deviceName)
}

// get performs a GET and renews the session once if it expired.
func (c *Client) get(ctx context.Context, path string, out any) error {
	err := c.do(ctx, http.MethodGet, path, nil, out)
	if !errors.Is(err, ErrAuthentication) {
		return err
	}

	c.logger.Info("Session expired, logging in again")
	if err := c.loginLocked(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s %s", ErrAuthentication, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
