package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"termcal/internal/config"
	"termcal/internal/generate"
	"termcal/internal/ics"
	appLog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/term"
	"termcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	tablePath  string
	listen     string
	initConfig string
	inspect    string
	check      bool
	serve      bool
	verbose    bool
}

const usage = `usage:
  termcal [flags] <input> <output.ics> [year]
  termcal -check [flags] <input> [year]
  termcal -serve [flags] <input> [year]
  termcal -inspect <calendar.ics>
  termcal -init-config <path>

<input> is a file or http(s) URL with one event per line:
  <term> <day> <weeks> [HH:MM]; <description>
e.g.
  E Tue 2,5 15:00; Project presentations

[year] is the Michaelmas year opening the academic year; by default the
current academic year is used.

flags:
`

func main() {
	flags := parseFlags()
	if err := run(flags, flag.Args(), os.Stdout); err != nil {
		appLog.Error("termcal failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&cfg.tablePath, "table", "", "Path to YAML Full Term table (overrides config)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address for -serve (overrides config)")
	flag.StringVar(&cfg.initConfig, "init-config", "", "Write a default config file to this path and exit")
	flag.StringVar(&cfg.inspect, "inspect", "", "List the events of an existing calendar file and exit")
	flag.BoolVar(&cfg.check, "check", false, "Parse and print resolved dates without writing a calendar")
	flag.BoolVar(&cfg.serve, "serve", false, "Serve the calendar over HTTP, rebuilding it on a schedule")
	flag.BoolVar(&cfg.verbose, "v", false, "Debug logging")

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	return cfg
}

func run(flags flagConfig, args []string, stdout io.Writer) error {
	if flags.initConfig != "" {
		if err := config.Save(flags.initConfig, config.DefaultConfig()); err != nil {
			return err
		}
		appLog.Info("default config written", "path", flags.initConfig)
		return nil
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.tablePath != "" {
		conf.TermTable = flags.tablePath
	}
	if flags.listen != "" {
		conf.Serve.Listen = flags.listen
	}

	level, _ := appLog.ParseLevel(conf.LogLevel)
	if flags.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if flags.inspect != "" {
		return inspect(flags.inspect, stdout)
	}

	table, err := conf.Table()
	if err != nil {
		return err
	}

	want := 2
	if flags.check || flags.serve {
		want = 1
	}
	if len(args) != want && len(args) != want+1 {
		flag.Usage()
		return errors.New("wrong number of arguments")
	}

	year := term.DefaultAcademicYear(time.Now())
	if len(args) == want+1 {
		if year, err = strconv.Atoi(args[want]); err != nil {
			return fmt.Errorf("year %q: %w", args[want], err)
		}
	}

	appLog.Debug("effective config",
		"config_path", flags.configPath,
		"term_table", conf.TermTable,
		"year", year,
		"skip_invalid", conf.SkipInvalid,
		"collapse_runs", conf.Calendar.CollapseRuns,
		"timezone", conf.Calendar.Timezone,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gen := generate.New(conf, table)

	switch {
	case flags.serve:
		return serve(ctx, conf, gen, args[0], year)
	case flags.check:
		res, err := gen.Run(ctx, args[0], year)
		if err != nil {
			return err
		}
		printOccurrences(stdout, res.Occurrences, true)
		return nil
	default:
		res, err := gen.Run(ctx, args[0], year)
		if err != nil {
			return err
		}
		return ics.WriteFile(args[1], res.Calendar)
	}
}

func serve(ctx context.Context, conf *config.Config, gen *generate.Generator, source string, year int) error {
	build := func(ctx context.Context) (*web.Snapshot, error) {
		res, err := gen.Run(ctx, source, year)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := ics.Serialize(&buf, res.Calendar); err != nil {
			return nil, err
		}
		return &web.Snapshot{
			Year:        res.Year,
			Calendar:    buf.Bytes(),
			Occurrences: res.Occurrences,
			BuiltAt:     time.Now(),
		}, nil
	}

	err := web.NewServer(conf, build).Run(ctx)
	appLog.Info("termcal exiting")
	return err
}

func inspect(path string, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := ics.ParseICS(f)
	if err != nil {
		return err
	}
	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{})
	if err != nil {
		return err
	}
	printOccurrences(stdout, res.Occurrences, false)
	return nil
}

func printOccurrences(w io.Writer, occs []model.Occurrence, showWeek bool) {
	for _, o := range occs {
		when := term.When{Time: o.Start, AllDay: o.AllDay}
		if showWeek {
			fmt.Fprintf(w, "%-16s  week %2d  %s\n", when, o.Week, o.Summary)
		} else {
			fmt.Fprintf(w, "%-16s  %s\n", when, o.Summary)
		}
	}
}
