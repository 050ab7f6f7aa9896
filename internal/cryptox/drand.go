package cryptox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DrandQuicknetChainHash identifies the drand quicknet beacon (3s rounds).
	DrandQuicknetChainHash = "52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971"
	DrandDefaultURL        = "https://api.drand.sh"
)

type drandInfo struct {
	Period      int64  `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        string `json:"hash"`
}

type drandPublic struct {
	Round uint64 `json:"round"`
}

// DrandClock is a TimeAuthority backed by the drand randomness beacon: the
// current time is the publication time of the latest round. Unlocking then
// does not depend on the local clock of the machine doing it.
type DrandClock struct {
	BaseURL    string
	ChainHash  string
	HTTPClient *http.Client

	mu   sync.Mutex
	info *drandInfo
}

// NewDrandClock returns a beacon clock. Empty arguments select the public
// quicknet beacon.
func NewDrandClock(baseURL, chainHash string, client *http.Client) *DrandClock {
	if baseURL == "" {
		baseURL = DrandDefaultURL
	}
	if chainHash == "" {
		chainHash = DrandQuicknetChainHash
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DrandClock{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ChainHash:  chainHash,
		HTTPClient: client,
	}
}

func (d *DrandClock) Name() string { return "drand" }

// Now returns genesis + latestRound*period.
func (d *DrandClock) Now(ctx context.Context) (time.Time, error) {
	info, err := d.fetchInfo(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch drand info: %w", err)
	}

	var latest drandPublic
	if err := d.getJSON(ctx, "/public/latest", &latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch latest round: %w", err)
	}

	return RoundTime(info.GenesisTime, info.Period, latest.Round), nil
}

// RoundAt returns the first round published at or after t.
func (d *DrandClock) RoundAt(ctx context.Context, t time.Time) (uint64, error) {
	info, err := d.fetchInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch drand info: %w", err)
	}

	elapsed := t.Unix() - info.GenesisTime
	if elapsed < 0 {
		return 0, fmt.Errorf("time %s is before drand genesis", t.UTC().Format(time.RFC3339))
	}

	round := uint64(elapsed) / uint64(info.Period)
	if uint64(elapsed)%uint64(info.Period) != 0 {
		round++
	}
	return round, nil
}

// RoundTime is the publication instant of round on a chain with the given
// genesis (Unix seconds) and period (seconds).
func RoundTime(genesis, period int64, round uint64) time.Time {
	return time.Unix(genesis+int64(round)*period, 0).UTC()
}

func (d *DrandClock) fetchInfo(ctx context.Context) (*drandInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil {
		return d.info, nil
	}

	var info drandInfo
	if err := d.getJSON(ctx, "/info", &info); err != nil {
		return nil, err
	}
	if info.Period <= 0 {
		return nil, fmt.Errorf("drand info has invalid period %d", info.Period)
	}

	d.info = &info
	return &info, nil
}

func (d *DrandClock) getJSON(ctx context.Context, path string, target any) error {
	url := d.BaseURL + "/" + d.ChainHash + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("drand GET %s failed: %d", path, resp.StatusCode)
	}

	return json.Unmarshal(body, target)
}
