// fairqueue-loadgen is a tiny, dependency-free HTTP load generator tailored
// for the fairqueue demo server. It reuses HTTP connections (keep-alive) and
// supports concurrency so demo scripts run fast without relying on external
// tools.
//
// Modes:
//   - single: every worker hits the same flow id
//   - zipf:   approximate 80/20 skew (hot/cold) without PRNG: send the hot
//     flow 4/5 of the time
//
// Each request pair is POST /acquire?flow_id=...&weight=... followed
// immediately by POST /release?token=... once the acquire completes, so the
// run measures steady-state admission/release throughput rather than
// accumulating held slots.
//
// Usage examples:
//
//	fairqueue-loadgen -base=http://127.0.0.1:8080 -mode=single -flow=alice -n=5000 -c=16
//	fairqueue-loadgen -base=http://127.0.0.1:8080 -mode=zipf -hot_flow=hot-1 -cold_flows=50 -n=8000 -c=16
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modeSingle modeType = "single"
	modeZipf   modeType = "zipf"
)

type acquireResponse struct {
	Token  string `json:"token"`
	FlowID string `json:"flow_id"`
}

func main() {
	var (
		base      = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host, e.g. http://127.0.0.1:8080")
		modeS     = flag.String("mode", string(modeSingle), "Mode: single|zipf")
		flowID    = flag.String("flow", "alice", "Flow id for single mode")
		hotFlow   = flag.String("hot_flow", "hot-1", "Hot flow id for zipf mode")
		coldN     = flag.Int("cold_flows", 50, "Number of cold flows to round-robin in zipf mode")
		weight    = flag.Uint("weight", 1, "Weight to request for every Acquire")
		N         = flag.Int("n", 5000, "Total acquire/release pairs to send")
		conc      = flag.Int("c", 8, "Number of concurrent workers")
		hotEvery  = flag.Int("hot_every", 5, "Zipf-like skew period (all but 1 of every this-many requests go to the hot flow; minimum 2)")
		timeout   = flag.Duration("timeout", 20*time.Second, "Overall timeout for the loadgen run")
		connIdle  = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle   = flag.Int("max_idle", 256, "Max idle connections total")
		maxIdlePH = flag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modeSingle && m != modeZipf {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want single|zipf)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}
	if m == modeZipf {
		if *coldN <= 0 {
			fmt.Fprintln(os.Stderr, "-cold_flows must be > 0 in zipf mode")
			os.Exit(2)
		}
		if *hotEvery < 2 {
			*hotEvery = 2
		}
	}

	baseURL := strings.TrimRight(*base, "/")

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePH,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var done, failures int64

	acquireThenRelease := func(flow string) error {
		u := baseURL + "/acquire?" + url.Values{
			"flow_id": {flow},
			"weight":  {strconv.FormatUint(uint64(*weight), 10)},
		}.Encode()
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("acquire status %d", resp.StatusCode)
		}
		var body acquireResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}

		relURL := baseURL + "/release?" + url.Values{"token": {body.Token}}.Encode()
		relReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, relURL, nil)
		relResp, err := client.Do(relReq)
		if err != nil {
			return err
		}
		defer relResp.Body.Close()
		io.Copy(io.Discard, relResp.Body)
		if relResp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("release status %d", relResp.StatusCode)
		}
		return nil
	}

	worker := func(id, count int) {
		defer atomic.AddInt64(&done, int64(count))
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var flow string
			if m == modeSingle {
				flow = *flowID
			} else if ((i + id) % *hotEvery) != 0 {
				flow = *hotFlow
			} else {
				idx := ((i + id) % *coldN) + 1
				flow = fmt.Sprintf("cold-%d", idx)
			}
			if err := acquireThenRelease(flow); err != nil {
				atomic.AddInt64(&failures, 1)
				time.Sleep(200 * time.Microsecond)
			}
		}
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("LoadGen: mode=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s Failures=%d\n",
		m, *N, *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops, atomic.LoadInt64(&failures))
}
