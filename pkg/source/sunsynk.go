package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarbot/solarbot/pkg/common"
	"github.com/solarbot/solarbot/pkg/log"
	"github.com/solarbot/solarbot/pkg/types"
)

const sunsynkLoginPath = "oauth/token"

// Sunsynk reads the live power flow of a plant from the Sunsynk portal API,
// the same data the portal's dashboard renders.
type Sunsynk struct {
	client   *http.Client
	baseURL  string
	username string
	password string

	mu      sync.Mutex
	plantID string
	token   string
}

func configuredSunsynk() *Sunsynk {
	baseURL := lflag.String("sunsynk-api-url", "https://api.sunsynk.net", "Sunsynk portal API base URL")
	username := lflag.String("sunsynk-username", os.Getenv("SUNSYNK_USERNAME"), "Sunsynk portal e-mail")
	password := lflag.String("sunsynk-password", os.Getenv("SUNSYNK_PASSWORD"), "Sunsynk portal password")
	plantID := lflag.String("sunsynk-plant-id", os.Getenv("PLANT_ID"), "Sunsynk plant id (discovered when empty)")
	timeout := lflag.Duration("sunsynk-timeout", 30*time.Second, "Timeout for each request to the Sunsynk portal")

	s := &Sunsynk{}

	lflag.Do(func() {
		s.client = common.HTTPClient(*timeout)
		s.baseURL = *baseURL
		s.username = *username
		s.password = *password
		s.plantID = *plantID
	})

	return s
}

// Validate checks if the provider is properly configured.
func (s *Sunsynk) Validate() error {
	if s.username == "" {
		return errors.New("missing sunsynk username")
	}
	if s.password == "" {
		return errors.New("missing sunsynk password")
	}
	return nil
}

type sunsynkResponse struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

type loginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type plantListResult struct {
	Total int `json:"total"`
	Infos []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"infos"`
}

type flowResult struct {
	PVPower   float64 `json:"pvPower"`
	BattPower float64 `json:"battPower"`
	GridPower float64 `json:"gridOrMeterPower"`
	LoadPower float64 `json:"loadOrEpsPower"`
	SOC       float64 `json:"soc"`
}

// Authenticate logs into the portal and, if no plant was configured, picks
// the account's only plant.
func (s *Sunsynk) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""

	req, err := s.newPostJSONRequest(ctx, sunsynkLoginPath, map[string]string{
		"username":   s.username,
		"password":   s.password,
		"grant_type": "password",
		"client_id":  "csp-web",
		"source":     "sunsynk",
		"areaCode":   "sunsynk",
	})
	if err != nil {
		return err
	}

	var res loginResult
	if err := s.doRequest(req, &res); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "sunsynk login failed", slog.Any("error", err))
		return fmt.Errorf("login failed: %w", err)
	}
	if res.AccessToken == "" {
		return errors.New("login failed: no access token")
	}
	s.token = res.AccessToken
	log.Ctx(ctx).InfoContext(ctx, "sunsynk login successful", slog.String("username", s.username))

	if s.plantID == "" {
		id, err := s.getDefaultPlantID(ctx)
		if err != nil {
			return fmt.Errorf("failed to get default plant id: %w", err)
		}
		s.plantID = id
		log.Ctx(ctx).InfoContext(ctx, "automatically selected plant", slog.String("plantID", id))
	}
	return nil
}

func (s *Sunsynk) getDefaultPlantID(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("limit", "10")

	req, err := s.newGetRequest(ctx, "api/v1/plants", params)
	if err != nil {
		return "", err
	}

	var res plantListResult
	if err := s.doRequest(req, &res); err != nil {
		return "", err
	}
	if len(res.Infos) == 1 {
		return strconv.Itoa(res.Infos[0].ID), nil
	}
	return "", fmt.Errorf("found %d plants, expected 1", len(res.Infos))
}

// ReadFields returns the plant's current power flow rendered the way the
// dashboard shows it.
func (s *Sunsynk) ReadFields(ctx context.Context) (types.RawFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return types.RawFields{}, ErrSessionExpired
	}

	params := url.Values{}
	params.Set("date", time.Now().Format("2006-01-02"))
	req, err := s.newGetRequest(ctx, "api/v1/plant/energy/"+url.PathEscape(s.plantID)+"/flow", params)
	if err != nil {
		return types.RawFields{}, err
	}

	var res flowResult
	if err := s.doRequest(req, &res); err != nil {
		return types.RawFields{}, fmt.Errorf("plant flow failed: %w", err)
	}

	log.Ctx(ctx).DebugContext(ctx, "sunsynk power flow",
		slog.Float64("pvW", res.PVPower),
		slog.Float64("loadW", res.LoadPower),
		slog.Float64("gridW", res.GridPower),
		slog.Float64("batteryW", res.BattPower),
		slog.Float64("soc", res.SOC),
	)

	return types.RawFields{
		PV:      formatWatts(res.PVPower),
		Load:    formatWatts(res.LoadPower),
		Grid:    formatWatts(res.GridPower),
		Battery: formatWatts(res.BattPower),
		SOC:     strconv.FormatFloat(res.SOC, 'f', -1, 64) + "%",
	}, nil
}

// Close drops the session token and idle connections.
func (s *Sunsynk) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.client.CloseIdleConnections()
	return nil
}

func formatWatts(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64) + "W"
}

func (s *Sunsynk) newGetRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	u = u.JoinPath(endpoint)
	u.RawQuery = params.Encode()
	return http.NewRequestWithContext(ctx, "GET", u.String(), nil)
}

func (s *Sunsynk) newPostJSONRequest(ctx context.Context, endpoint string, data interface{}) (*http.Request, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	u = u.JoinPath(endpoint)

	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doRequest sends req and decodes the data of the response envelope into
// dest. Must be called with s.mu held.
func (s *Sunsynk) doRequest(req *http.Request, dest interface{}) error {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		log.Ctx(req.Context()).DebugContext(req.Context(), "sunsynk token expired")
		s.token = ""
		return ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var sr sunsynkResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		log.Ctx(req.Context()).ErrorContext(req.Context(), "failed to decode sunsynk response", slog.Any("error", err), slog.String("body", string(body)))
		return err
	}

	if !sr.Success || sr.Code != 0 {
		if sr.Code == 401 {
			s.token = ""
			return ErrSessionExpired
		}
		if sr.Msg == "" {
			log.Ctx(req.Context()).ErrorContext(req.Context(), "sunsynk api unknown error", slog.String("body", string(body)))
			return errors.New("sunsynk unknown error")
		}
		return fmt.Errorf("sunsynk api error: %s", sr.Msg)
	}

	if dest != nil {
		if err := json.Unmarshal(sr.Data, dest); err != nil {
			return fmt.Errorf("failed to decode sunsynk data: %w", err)
		}
	}
	return nil
}
