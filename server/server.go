package server

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/opentracing/opentracing-go"
	slog "github.com/opentracing/opentracing-go/log"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/finder"
	"github.com/akhenakh/insidetz/index/exactindex"
	"github.com/akhenakh/insidetz/index/fuzzyindex"

	// zones offsets are computed even on hosts without a tz database
	_ "time/tzdata"
)

// Server exposes the finder.
type Server struct {
	logger log.Logger
	finder *finder.DefaultFinder
	exact  *exactindex.Index
	fuzzy  *fuzzyindex.Index
	cache  *ristretto.Cache
	now    func() time.Time
}

type Options struct {
	// CacheMaxCost max bytes of GeoJSON exports kept in memory, 0 disables the cache
	CacheMaxCost int64
	// Offsets replaces finder.DefaultOffsets when not nil
	Offsets []finder.Offset
	// HealthService is the health check service set to NOT_SERVING when the indexes can't be loaded
	HealthService string
}

// TimezoneResponse is the answer to a point lookup.
type TimezoneResponse struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Timezone  string   `json:"timezone"`
	Timezones []string `json:"timezones,omitempty"`
	Source    string   `json:"source"`
	// Offset is the [lng, lat] shift applied to the query point to find a match
	Offset [2]float64 `json:"offset"`
	// UTCOffset seconds east of UTC now, nil when the zone is unknown to the tz database
	UTCOffset    *int   `json:"utc_offset,omitempty"`
	Abbreviation string `json:"abbreviation,omitempty"`
}

// VersionResponse describes the loaded dataset.
type VersionResponse struct {
	DataVersion     string `json:"data_version"`
	PreindexVersion string `json:"preindex_version"`
	Reduced         bool   `json:"reduced"`
	TimezoneCount   int    `json:"timezone_count"`
	TileCount       int    `json:"tile_count"`
}

// New loads both indexes from storage and builds the finder.
func New(
	ctx context.Context,
	logger log.Logger,
	storage insidetz.Store,
	healthServer *health.Server,
	opts Options,
) (*Server, error) {
	logger = log.With(logger, "component", "server")

	span, _ := opentracing.StartSpanFromContext(ctx, "LoadIndexes")
	defer span.Finish()

	exact, fuzzy, err := loadIndexes(storage)
	if err != nil {
		span.LogFields(slog.Error(err))
		healthServer.SetServingStatus(opts.HealthService, healthpb.HealthCheckResponse_NOT_SERVING)

		return nil, err
	}

	var fopts []finder.Option
	if opts.Offsets != nil {
		fopts = append(fopts, finder.WithOffsets(opts.Offsets))
	}

	s := &Server{
		logger: logger,
		finder: finder.New(fuzzy, exact, fopts...),
		exact:  exact,
		fuzzy:  fuzzy,
		now:    time.Now,
	}

	if opts.CacheMaxCost > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e4, // number of keys to track frequency
			MaxCost:     opts.CacheMaxCost,
			BufferItems: 64, // number of keys per Get buffer.
		})
		if err != nil {
			return nil, fmt.Errorf("cache error: %w", err)
		}
		s.cache = cache
	}

	span.SetTag("timezone_count", exact.Len())
	span.SetTag("tile_count", fuzzy.Len())

	level.Info(logger).Log(
		"msg", "indexes loaded",
		"timezone_count", exact.Len(),
		"tile_count", fuzzy.Len(),
		"data_version", exact.DataVersion(),
		"reduced", exact.Reduced(),
	)

	return s, nil
}

func loadIndexes(storage insidetz.Store) (*exactindex.Index, *fuzzyindex.Index, error) {
	tzs, err := storage.LoadTimezones()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load timezones from storage: %w", err)
	}

	pre, err := storage.LoadPreindex()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load preindex from storage: %w", err)
	}

	exact, err := exactindex.New(tzs)
	if err != nil {
		return nil, nil, err
	}

	fuzzy, err := fuzzyindex.New(pre)
	if err != nil {
		return nil, nil, err
	}

	return exact, fuzzy, nil
}

// Lookup resolves lat lng, a nil response means no timezone was found.
func (s *Server) Lookup(ctx context.Context, lat, lng float64, all bool) *TimezoneResponse {
	span, _ := opentracing.StartSpanFromContext(ctx, "Lookup")
	defer span.Finish()

	res := s.finder.Resolve(lng, lat)
	lookupCounter.WithLabelValues(res.Source.String()).Inc()

	span.LogFields(
		slog.Float64("lat", lat),
		slog.Float64("lng", lng),
		slog.String("source", res.Source.String()),
		slog.Int("probe", res.Probe),
	)

	if res.Source == finder.SourceNone {
		level.Debug(s.logger).Log("msg", "no timezone found", "lat", lat, "lng", lng)

		return nil
	}

	if res.Probe > 0 {
		fallbackCounter.WithLabelValues(res.Source.String()).Inc()
	}

	// same answer as GetName: coarsest tile first name or first region in table order
	name := res.Names[0]

	resp := &TimezoneResponse{
		Lat:      lat,
		Lng:      lng,
		Timezone: name,
		Source:   res.Source.String(),
		Offset:   [2]float64{res.Offset.DLng, res.Offset.DLat},
	}

	if all {
		resp.Timezones = res.Names
	}

	if loc, err := time.LoadLocation(name); err == nil {
		abbr, offset := s.now().In(loc).Zone()
		resp.UTCOffset = &offset
		resp.Abbreviation = abbr
	} else {
		level.Debug(s.logger).Log("msg", "unknown location", "timezone", name, "error", err)
	}

	level.Debug(s.logger).Log(
		"msg", "found timezone",
		"lat", lat,
		"lng", lng,
		"timezone", name,
		"source", res.Source,
		"probe", res.Probe,
	)

	return resp
}

// TimezoneNames returns every known timezone name.
func (s *Server) TimezoneNames() []string {
	return s.finder.TimezoneNames()
}

// Version returns the loaded dataset description.
func (s *Server) Version() *VersionResponse {
	return &VersionResponse{
		DataVersion:     s.exact.DataVersion(),
		PreindexVersion: s.fuzzy.DataVersion(),
		Reduced:         s.exact.Reduced(),
		TimezoneCount:   s.exact.Len(),
		TileCount:       s.fuzzy.Len(),
	}
}

func (s *Server) handleError(terr error, span opentracing.Span) {
	if terr != nil {
		errorCounter.Inc()
		span.LogFields(
			slog.String("error", terr.Error()),
		)
		span.SetTag("error", true)

		level.Error(s.logger).Log("error", terr)
	}
}
