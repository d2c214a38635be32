package main

import (
	"fmt"
	"os"
	"strings"

	log "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/namsral/flag"

	"github.com/akhenakh/insidetz/finder"
	"github.com/akhenakh/insidetz/loglevel"
	"github.com/akhenakh/insidetz/storage/bbolt"
)

const appName = "tzcli"

var (
	logLevel = flag.String("logLevel", "WARN", "DEBUG|INFO|WARN|ERROR")
	dbPath   = flag.String("dbPath", "tz.db", "Database path")
	lat      = flag.Float64("lat", 39.9289, "Lat")
	lng      = flag.Float64("lng", 116.3883, "Lng")
	all      = flag.Bool("all", false, "print every timezone found at the resolving offset")
	infos    = flag.Bool("infos", false, "print the index infos and exit")
)

func main() {
	flag.Parse()

	exitcode := 0
	defer func() { os.Exit(exitcode) }()

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "caller", log.Caller(5), "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "app", appName)
	logger = loglevel.NewLevelFilterFromString(logger, *logLevel)

	storage, clean, err := bbolt.NewROStorage(*dbPath, logger)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open storage", "error", err, "db_path", *dbPath)

		exitcode = 1

		return
	}
	defer clean()

	if *infos {
		ii, err := storage.LoadIndexInfos()
		if err != nil {
			level.Error(logger).Log("msg", "failed to read infos", "error", err)

			exitcode = 1

			return
		}

		fmt.Print(ii)

		return
	}

	tzs, err := storage.LoadTimezones()
	if err != nil {
		level.Error(logger).Log("msg", "failed to load timezones", "error", err)

		exitcode = 1

		return
	}

	pre, err := storage.LoadPreindex()
	if err != nil {
		level.Error(logger).Log("msg", "failed to load preindex", "error", err)

		exitcode = 1

		return
	}

	f, err := finder.NewFromStorage(tzs, pre)
	if err != nil {
		level.Error(logger).Log("msg", "invalid data", "error", err)

		exitcode = 1

		return
	}

	res := f.Resolve(*lng, *lat)
	level.Debug(logger).Log(
		"msg", "resolved",
		"source", res.Source,
		"probe", res.Probe,
		"dlng", res.Offset.DLng,
		"dlat", res.Offset.DLat,
	)

	if res.Source == finder.SourceNone {
		fmt.Fprintf(os.Stderr, "no timezone found at %f,%f\n", *lat, *lng)

		exitcode = 2

		return
	}

	if *all {
		fmt.Println(strings.Join(res.Names, "\n"))

		return
	}

	fmt.Println(res.Names[0])
}
