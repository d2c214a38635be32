package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/namsral/flag"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/akhenakh/insidetz"
	"github.com/akhenakh/insidetz/loglevel"
	"github.com/akhenakh/insidetz/storage/bbolt"
)

const appName = "tzindexer"

var (
	version = "no version from LDFLAGS"

	logLevel     = flag.String("logLevel", "INFO", "DEBUG|INFO|WARN|ERROR")
	filePath     = flag.String("filePath", "", "timezones GeoJSON file path, one feature per timezone with a tzid property")
	preindexPath = flag.String("preindexPath", "", "tile pyramid JSON file path")
	dataVersion  = flag.String("dataVersion", "", "timezones dataset version, eg 2025b")
	reduced      = flag.Bool("reduced", false, "the GeoJSON holds the simplified polygons")
	dbPath       = flag.String("dbPath", "tz.db", "Database path")
)

func main() {
	flag.Parse()

	exitcode := 0
	defer func() { os.Exit(exitcode) }()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "caller", log.Caller(5), "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = loglevel.NewLevelFilterFromString(logger, *logLevel)

	level.Info(logger).Log("msg", "Starting app", "version", version)

	var fc geojson.FeatureCollection

	file, err := os.Open(*filePath)
	if err != nil {
		level.Error(logger).Log("msg", "can't open GeoJSON file", "error", err, "file_path", *filePath)

		exitcode = 1

		return
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&fc); err != nil {
		level.Error(logger).Log("msg", "can't decode GeoJSON file", "error", err, "file_path", *filePath)

		exitcode = 1

		return
	}

	tzs, err := insidetz.TimezonesFromGeoJSON(&fc, *dataVersion, *reduced)
	if err != nil {
		level.Error(logger).Log("msg", "can't read timezones", "error", err)

		exitcode = 1

		return
	}

	pfile, err := os.Open(*preindexPath)
	if err != nil {
		level.Error(logger).Log("msg", "can't open preindex file", "error", err, "preindex_path", *preindexPath)

		exitcode = 1

		return
	}
	defer pfile.Close()

	pre, err := insidetz.DecodePreindex(pfile)
	if err != nil {
		level.Error(logger).Log("msg", "can't read preindex", "error", err)

		exitcode = 1

		return
	}

	storage, clean, err := bbolt.NewStorage(*dbPath, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open storage", "error", err, "db_path", *dbPath)

		exitcode = 1

		return
	}
	defer clean()

	if err := storage.Index(tzs, pre, filepath.Base(*filePath), version); err != nil {
		level.Error(logger).Log("msg", "can't index", "error", err)

		exitcode = 1

		return
	}

	infos, err := storage.LoadIndexInfos()
	if err != nil {
		level.Error(logger).Log("msg", "can't read back infos", "error", err)

		exitcode = 1

		return
	}

	level.Info(logger).Log(
		"msg", "indexing done",
		"timezone_count", infos.TimezoneCount,
		"tile_count", infos.TileCount,
		"data_version", infos.DataVersion,
	)
}
