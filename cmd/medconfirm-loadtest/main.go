// Command medconfirm-loadtest drives concurrent confirmation flows against
// Redis (or miniredis) with a stub identity service of fixed latency.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const origin = "https://admin.medconfirm.app"

type stubIdentity struct {
	latency time.Duration
}

func (s stubIdentity) wait(ctx context.Context) error {
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s stubIdentity) EstablishSession(ctx context.Context, _, _ string) (medconfirm.IdentityUser, error) {
	if err := s.wait(ctx); err != nil {
		return medconfirm.IdentityUser{}, err
	}
	return medconfirm.IdentityUser{ID: "u1", Email: "doctor@example.com"}, nil
}

func (s stubIdentity) VerifyOneTimeToken(ctx context.Context, _ string, _ medconfirm.OTPKind) (medconfirm.IdentityUser, error) {
	if err := s.wait(ctx); err != nil {
		return medconfirm.IdentityUser{}, err
	}
	return medconfirm.IdentityUser{ID: "u1", Email: "doctor@example.com"}, nil
}

func (s stubIdentity) MarkEmailConfirmed(ctx context.Context, _ string) error {
	return s.wait(ctx)
}

type stubRecords struct{}

func (stubRecords) FindByEmail(_ context.Context, email string) (*medconfirm.DoctorRecord, error) {
	return &medconfirm.DoctorRecord{ID: "doc-1", Email: email}, nil
}

func (stubRecords) TouchUpdatedAt(context.Context, string) error { return nil }

func main() {
	var (
		runs        = flag.Int("runs", 20000, "confirmation flows per phase")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		latency     = flag.Duration("identity-latency", 5*time.Millisecond, "simulated identity service latency")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *runs <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "runs and concurrency must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := medconfirm.DefaultConfig()
	cfg.Confirmation.AllowedOrigins = []string{origin}
	cfg.Attempts.RedisPrefix = fmt.Sprintf("mc:loadtest:%d", time.Now().UnixNano())

	engine, err := medconfirm.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityService(stubIdentity{latency: *latency}).
		WithRecordStore(stubRecords{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	entry := origin + "/confirme#access_token=" + loadTestToken() + "&refresh_token=r&type=signup"

	confirmStats := runPhase(*runs, *concurrency, func(i int) error {
		flow := engine.NewFlow(fmt.Sprintf("device-%d", i))
		_, err := flow.Run(ctx, entry, origin)
		return err
	})

	// Every run fails on the missing token for one of 16 devices, so most runs
	// end at the attempt cap.
	limitStats := runPhase(*runs, *concurrency, func(i int) error {
		flow := engine.NewFlow(fmt.Sprintf("hot-device-%d", i%16))
		_, err := flow.Run(ctx, origin+"/confirme", origin)
		return err
	})

	fmt.Println("---- results ----")
	printStats("confirm", confirmStats)
	printStats("attempt-cap", limitStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("success=%d rate_limited=%d missing_token=%d\n",
		snap.Counters[medconfirm.MetricConfirmationSuccess],
		snap.Counters[medconfirm.MetricConfirmationRateLimited],
		snap.Counters[medconfirm.MetricMissingToken],
	)
}

func runPhase(runs, concurrency int, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, runs)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= runs {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: runs=%d failures=%d total=%s runs/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// loadTestToken returns a token that passes the shape check.
func loadTestToken() string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"sub":"u1","pad":"`+strings.Repeat("x", 120)+`"}`)) + "." +
		enc.EncodeToString([]byte(strings.Repeat("s", 32)))
}
