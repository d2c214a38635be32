package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/namsral/flag"
	"github.com/rcrowley/go-metrics"

	"github.com/akhenakh/insidetz/loglevel"
	"github.com/akhenakh/insidetz/server"
)

const appName = "tzloadtester"

var (
	logLevel     = flag.String("logLevel", "INFO", "DEBUG|INFO|WARN|ERROR")
	testDuration = flag.Duration("testDuration", 0, "performs the test for duration, 0 = infinite")
	tzURI        = flag.String("tzURI", "http://localhost:8080", "tzinsided http API URI")
	concurrency  = flag.Int("concurrency", 1, "concurrent clients")
	latMin       = flag.Float64("latMin", -60, "Lat min")
	lngMin       = flag.Float64("lngMin", -180, "Lng min")
	latMax       = flag.Float64("latMax", 70, "Lat max")
	lngMax       = flag.Float64("lngMax", 180, "Lng max")
)

func main() {
	flag.Parse()

	exitcode := 0
	defer func() { os.Exit(exitcode) }()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.Caller(5), "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = loglevel.NewLevelFilterFromString(logger, *logLevel)

	stdlog.SetOutput(log.NewStdlibAdapter(logger))

	rand.Seed(time.Now().UnixNano())

	client := &http.Client{Timeout: 2 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())

	if *testDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *testDuration)
	}

	// catch termination
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(interrupt)

	tm := metrics.NewTimer()
	notFound := metrics.NewCounter()

	var wg sync.WaitGroup

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for ctx.Err() == nil {
				lat := *latMin + rand.Float64()*(*latMax-*latMin) // nolint: gosec
				lng := *lngMin + rand.Float64()*(*lngMax-*lngMin) // nolint: gosec

				t := time.Now()

				resp, found, err := query(ctx, client, lat, lng)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					level.Error(logger).Log("msg", "error with request", "error", err)
					cancel()

					return
				}

				tm.UpdateSince(t)

				if !found {
					notFound.Inc(1)

					continue
				}

				level.Debug(logger).Log(
					"msg", "found timezone",
					"timezone", resp.Timezone,
					"source", resp.Source,
					"lat", lat,
					"lng", lng,
				)
			}
		}()
	}

	select {
	case <-interrupt:
		cancel()

		break
	case <-ctx.Done():
		break
	}

	wg.Wait()

	msg := fmt.Sprintf("count %d not found %d rate mean %.0f/s rate1 %.0f/s 99p %.0f\n",
		tm.Count(), notFound.Count(), tm.RateMean(), tm.Rate1(), tm.Percentile(99.0))
	level.Info(logger).Log("msg", msg)
}

func query(ctx context.Context, client *http.Client, lat, lng float64) (*server.TimezoneResponse, bool, error) {
	url := fmt.Sprintf("%s/api/tz/%f/%f", *tzURI, lat, lng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unexpected status %d for %s", res.StatusCode, url)
	}

	resp := &server.TimezoneResponse{}
	if err := json.NewDecoder(res.Body).Decode(resp); err != nil {
		return nil, false, fmt.Errorf("can't decode response: %w", err)
	}

	return resp, true, nil
}
