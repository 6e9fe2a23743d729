// Command gobridge-loadtest measures bridge round-trip throughput: many
// concurrent callers submitting login flows and lookups against one
// resident worker, over a real Redis or an embedded miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goBridge "github.com/MrEthical07/goBridge"
	"github.com/MrEthical07/goBridge/provider"
)

type loadClient struct{}

func (loadClient) Connect(context.Context) error { return nil }

func (loadClient) SendCode(_ context.Context, phone string) (provider.CodeSent, error) {
	return provider.CodeSent{PhoneCodeHash: "hash-" + phone, Timeout: 120, DeliveryType: "app"}, nil
}

func (loadClient) ResendCode(_ context.Context, phone, _ string) (provider.CodeSent, error) {
	return provider.CodeSent{PhoneCodeHash: "rehash-" + phone, Timeout: 120, DeliveryType: "sms"}, nil
}

func (loadClient) SignIn(context.Context, string, string, string) error { return nil }

func (loadClient) SignInWithPassword(context.Context, string) error { return nil }

func (loadClient) Self(context.Context) (provider.Identity, error) {
	return provider.Identity{UserID: 1, Username: "loadtest"}, nil
}

func (loadClient) SignOut(context.Context) error { return nil }

type loadKeeper struct{}

func (loadKeeper) SaveSession(context.Context) error { return nil }

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent callers")
		ops         = flag.Int("ops", 20000, "operations per phase (login + lookup)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "loadtest", "bridge key prefix")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := defaultLoadConfig(*prefix)

	bridge, err := goBridge.New().
		WithConfig(cfg).
		WithRedis(client).
		WithProvider(loadClient{}, loadKeeper{}).
		WithLookupHandler("echo", func(_ context.Context, payload []byte) (any, error) {
			return map[string]int{"bytes": len(payload)}, nil
		}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = bridge.RunWorker(ctx)
	}()
	// Let the worker and lookup subscriber come up.
	time.Sleep(100 * time.Millisecond)

	loginStats := runLoginPhase(ctx, bridge, *ops, *concurrency)
	lookupStats := runLookupPhase(ctx, bridge, *ops, *concurrency)

	cancel()
	<-workerDone

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("lookup", lookupStats)
}

func defaultLoadConfig(prefix string) goBridge.Config {
	cfg := goBridge.Config{
		Store: goBridge.StoreConfig{
			KeyPrefix:       prefix,
			ResponseTTL:     120 * time.Second,
			LoginContextTTL: 5 * time.Minute,
			LookupTTL:       60 * time.Second,
			StatusTTL:       60 * time.Second,
		},
		Gateway: goBridge.GatewayConfig{
			ActionWait:   10 * time.Second,
			LookupWait:   10 * time.Second,
			PollInterval: time.Millisecond,
		},
		Worker: goBridge.WorkerConfig{
			PollTimeout:  100 * time.Millisecond,
			ErrorBackoff: 100 * time.Millisecond,
			ProgressTTL:  2 * time.Minute,
		},
		Metrics: goBridge.MetricsConfig{Enabled: true, EnableLatencyHistograms: true},
	}
	return cfg
}

// runLoginPhase drives full start+verify cycles, each phone distinct so
// the single worker stays the only point of serialization.
func runLoginPhase(ctx context.Context, bridge *goBridge.Bridge, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				phone := fmt.Sprintf("+1555%07d", i)
				t0 := time.Now()
				_, err := bridge.LoginStart(ctx, phone)
				if err == nil {
					err = bridge.LoginVerify(ctx, phone, "12345", "")
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runLookupPhase(ctx context.Context, bridge *goBridge.Bridge, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := bridge.Lookup(ctx, "echo", map[string]int{"n": r.Intn(1000)})
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
