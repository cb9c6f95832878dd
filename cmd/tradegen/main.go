// Command tradegen generates synthetic trade proposals and submits them against
// a running service instance. It exercises the grading cache by resubmitting a
// fraction of proposals and reports throughput plus leaderboard results.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration constants.
const (
	defaultNumTrades   = 5000
	defaultTopN        = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
	defaultDupePercent = 20
)

var sports = []string{"nba", "nfl", "mlb", "nhl"}

var teamsBySport = map[string][]string{
	"nba": {"lakers", "celtics", "warriors", "knicks", "bulls", "heat"},
	"nfl": {"cowboys", "packers", "chiefs", "eagles", "bills", "raiders"},
	"mlb": {"yankees", "dodgers", "cubs", "red-sox", "mets", "giants"},
	"nhl": {"rangers", "bruins", "maple-leafs", "penguins", "blackhawks", "kings"},
}

type assetPayload struct {
	ExternalID  string       `json:"external_id,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
	Pick        *pickPayload `json:"pick,omitempty"`
}

type pickPayload struct {
	Year      int    `json:"year"`
	Round     int    `json:"round"`
	Condition string `json:"condition,omitempty"`
}

type tradePayload struct {
	Team     string         `json:"team"`
	Sport    string         `json:"sport"`
	Partner  string         `json:"partner"`
	Sent     []assetPayload `json:"sent"`
	Received []assetPayload `json:"received"`
}

type stats struct {
	submitted int64
	cached    int64
	failed    int64
}

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numTrades   = flag.Int("trades", defaultNumTrades, "Number of trade proposals to submit")
		numUsers    = flag.Int("users", 100, "Number of distinct user identities")
		topN        = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		dupePercent = flag.Int("dupes", defaultDupePercent, "Percent of submissions that repeat an earlier proposal")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	// Pre-generate payloads so duplicates are byte-identical submissions.
	payloads := make([]tradePayload, *numTrades)
	for i := range payloads {
		if *dupePercent > 0 && i > 0 && rng.Intn(100) < *dupePercent {
			payloads[i] = payloads[rng.Intn(i)]
			continue
		}
		payloads[i] = randomTrade(rng)
	}

	var st stats
	jobs := make(chan int)
	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			localRng := rand.New(rand.NewSource(*seed + int64(w)))
			for i := range jobs {
				user := fmt.Sprintf("user-%03d", localRng.Intn(*numUsers))
				cached, err := submitTrade(ctx, client, *baseURL, user, payloads[i])
				if err != nil {
					atomic.AddInt64(&st.failed, 1)
					continue
				}
				atomic.AddInt64(&st.submitted, 1)
				if cached {
					atomic.AddInt64(&st.cached, 1)
				}
			}
		}()
	}

	for i := 0; i < *numTrades; i++ {
		select {
		case <-ctx.Done():
			i = *numTrades
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("submitted %d trades in %s (%.0f/s), %d served from cache, %d failed\n",
		st.submitted, elapsed.Round(time.Millisecond),
		float64(st.submitted)/elapsed.Seconds(), st.cached, st.failed)

	for _, sport := range sports {
		if err := printLeaderboard(ctx, client, *baseURL, sport, *topN); err != nil {
			os.Stderr.WriteString("leaderboard fetch failed: " + err.Error() + "\n")
		}
	}
}

func randomTrade(rng *rand.Rand) tradePayload {
	sport := sports[rng.Intn(len(sports))]
	teams := teamsBySport[sport]
	ti := rng.Intn(len(teams))
	pi := rng.Intn(len(teams) - 1)
	if pi >= ti {
		pi++
	}
	return tradePayload{
		Team:     teams[ti],
		Sport:    sport,
		Partner:  teams[pi],
		Sent:     randomAssets(rng),
		Received: randomAssets(rng),
	}
}

func randomAssets(rng *rand.Rand) []assetPayload {
	n := 1 + rng.Intn(3)
	assets := make([]assetPayload, 0, n)
	for i := 0; i < n; i++ {
		if rng.Intn(4) == 0 {
			assets = append(assets, assetPayload{
				Pick: &pickPayload{Year: 2026 + rng.Intn(4), Round: 1 + rng.Intn(7)},
			})
			continue
		}
		assets = append(assets, assetPayload{
			ExternalID: fmt.Sprintf("player-%04d", rng.Intn(2000)),
		})
	}
	return assets
}

func submitTrade(ctx context.Context, client *http.Client, baseURL, user string, p tradePayload) (bool, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to marshal trade: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/trades", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to submit trade: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Cached bool `json:"cached"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Cached, nil
}

func printLeaderboard(ctx context.Context, client *http.Client, baseURL, sport string, topN int) error {
	url := fmt.Sprintf("%s/leaderboard?sport=%s&limit=%d", baseURL, sport, topN)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}

	var entries []struct {
		Rank   int     `json:"rank"`
		UserID string  `json:"user_id"`
		Score  float64 `json:"score"`
		Trades int     `json:"trades"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode leaderboard: %w", err)
	}

	fmt.Printf("\ntop %d for %s:\n", topN, sport)
	for _, e := range entries {
		fmt.Printf("  %3d. %-12s %8.1f (%d trades)\n", e.Rank, e.UserID, e.Score, e.Trades)
	}
	return nil
}
