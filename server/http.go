package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/akhenakh/insidetz"
)

// Router returns the API routes, each one measured by mdlw.
func (s *Server) Router(mdlw middleware.Middleware) *mux.Router {
	r := mux.NewRouter()

	handle := func(path, handlerID string, h http.HandlerFunc) {
		r.Handle(path, mdlw.Handler(handlerID, h)).Methods(http.MethodGet)
	}

	handle("/api/tz/{lat}/{lng}", "/api/tz/lat/lng", s.TimezoneHandler)
	handle("/api/tzs/{lat}/{lng}", "/api/tzs/lat/lng", s.TimezonesHandler)
	handle("/api/timezones", "/api/timezones", s.TimezoneNamesHandler)
	handle("/api/version", "/api/version", s.VersionHandler)
	handle("/api/debug/tz/{name:.+}", "/api/debug/tz/name", s.DebugTimezoneHandler)
	handle("/api/debug/tiles/{name:.+}", "/api/debug/tiles/name", s.DebugTilesHandler)

	return r
}

// TimezoneHandler HTTP 1.1 Handler returning the timezone at lat lng.
func (s *Server) TimezoneHandler(w http.ResponseWriter, r *http.Request) {
	s.lookupHandler(w, r, false)
}

// TimezonesHandler HTTP 1.1 Handler returning every timezone found at lat lng.
func (s *Server) TimezonesHandler(w http.ResponseWriter, r *http.Request) {
	s.lookupHandler(w, r, true)
}

func (s *Server) lookupHandler(w http.ResponseWriter, r *http.Request, all bool) {
	ctx := r.Context()

	span, ctx := opentracing.StartSpanFromContext(ctx, "LookupHandler")
	defer span.Finish()

	vars := mux.Vars(r)

	lat, err := strconv.ParseFloat(vars["lat"], 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		http.Error(w, "invalid parameter lat", http.StatusBadRequest)

		return
	}

	lng, err := strconv.ParseFloat(vars["lng"], 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		http.Error(w, "invalid parameter lng", http.StatusBadRequest)

		return
	}

	resp := s.Lookup(ctx, lat, lng, all)
	if resp == nil {
		s.notFound(w, "no timezone found at this location")

		return
	}

	s.writeJSON(w, span, resp)
}

// TimezoneNamesHandler HTTP 1.1 Handler listing every timezone names.
func (s *Server) TimezoneNamesHandler(w http.ResponseWriter, r *http.Request) {
	span, _ := opentracing.StartSpanFromContext(r.Context(), "TimezoneNamesHandler")
	defer span.Finish()

	s.writeJSON(w, span, s.TimezoneNames())
}

// VersionHandler HTTP 1.1 Handler describing the dataset.
func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	span, _ := opentracing.StartSpanFromContext(r.Context(), "VersionHandler")
	defer span.Finish()

	s.writeJSON(w, span, s.Version())
}

// DebugTimezoneHandler HTTP 1.1 Handler returning a timezone boundary as GeoJSON.
func (s *Server) DebugTimezoneHandler(w http.ResponseWriter, r *http.Request) {
	span, _ := opentracing.StartSpanFromContext(r.Context(), "DebugTimezoneHandler")
	defer span.Finish()

	name := mux.Vars(r)["name"]
	s.writeExport(w, r, span, "tz:"+name, func() (*geojson.FeatureCollection, bool) {
		return s.RegionGeoJSON(name)
	})
}

// DebugTilesHandler HTTP 1.1 Handler returning the tiles of a timezone as GeoJSON.
func (s *Server) DebugTilesHandler(w http.ResponseWriter, r *http.Request) {
	span, _ := opentracing.StartSpanFromContext(r.Context(), "DebugTilesHandler")
	defer span.Finish()

	name := mux.Vars(r)["name"]
	s.writeExport(w, r, span, "tiles:"+name, func() (*geojson.FeatureCollection, bool) {
		return s.TilesGeoJSON(name)
	})
}

// RegionGeoJSON returns the exact boundary of name, false if unknown.
func (s *Server) RegionGeoJSON(name string) (*geojson.FeatureCollection, bool) {
	region, ok := s.exact.Region(name)
	if !ok {
		return nil, false
	}

	fc := &geojson.FeatureCollection{}
	fc.Features = append(fc.Features, &geojson.Feature{
		Geometry: insidetz.MultiPolygonToGeom(region.Polygons),
		Properties: map[string]interface{}{
			insidetz.TimezoneProperty: name,
		},
	})

	return fc, true
}

// TilesGeoJSON returns one feature per pre-index tile naming name, false if none.
func (s *Server) TilesGeoJSON(name string) (*geojson.FeatureCollection, bool) {
	keys := s.fuzzy.Tiles(name)
	if len(keys) == 0 {
		return nil, false
	}

	g := insidetz.TilesToGeom(keys)
	fc := &geojson.FeatureCollection{}
	for i, k := range keys {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: g.Polygon(i),
			Properties: map[string]interface{}{
				insidetz.TimezoneProperty: name,
				"tile":                    fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y),
			},
		})
	}

	return fc, true
}

type export struct {
	body []byte
	etag string
}

// writeExport serves a GeoJSON export from the cache or builds it,
// a matching If-None-Match gets a 304.
func (s *Server) writeExport(
	w http.ResponseWriter,
	r *http.Request,
	span opentracing.Span,
	key string,
	build func() (*geojson.FeatureCollection, bool),
) {
	var e *export

	if s.cache != nil {
		if v, found := s.cache.Get(key); found {
			exportHitCounter.Inc()
			e = v.(*export)
		} else {
			exportMissCounter.Inc()
		}
	}

	if e == nil {
		fc, ok := build()
		if !ok {
			s.notFound(w, "unknown timezone")

			return
		}

		b, err := fc.MarshalJSON()
		if err != nil {
			s.handleError(fmt.Errorf("can't encode GeoJSON %s: %w", key, err), span)
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		e = &export{body: b, etag: fmt.Sprintf("\"%016x\"", xxhash.Sum64(b))}

		if s.cache != nil {
			s.cache.Set(key, e, int64(len(b)))
		}
	}

	w.Header().Set("ETag", e.etag)
	if r.Header.Get("If-None-Match") == e.etag {
		w.WriteHeader(http.StatusNotModified)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(e.body)
}

func (s *Server) writeJSON(w http.ResponseWriter, span opentracing.Span, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.handleError(fmt.Errorf("can't encode response: %w", err), span)
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (s *Server) notFound(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, "{\"msg\": %q}", msg)
}
