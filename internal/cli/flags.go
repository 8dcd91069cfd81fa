package cli

import (
	"github.com/spf13/pflag"

	"thsrbook/internal/config"
)

// searchFlags override config.Search and config.Browser for a single run.
type searchFlags struct {
	origin, dest, date, time, target string
	adults, students                 int
	engine, ua                       string
	headless                         bool
	proxies                          []string
}

func (f *searchFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.origin, "origin", "", "Departure station, e.g. 台北")
	fs.StringVar(&f.dest, "dest", "", "Arrival station, e.g. 台中")
	fs.StringVar(&f.date, "date", "", "Travel date YYYY-MM-DD")
	fs.StringVar(&f.time, "time", "", "Departure time as shown in the drop-down, e.g. 15:00")
	fs.IntVar(&f.adults, "adult", 0, "Adult tickets")
	fs.IntVar(&f.students, "student", 0, "Student tickets")
	fs.StringVar(&f.target, "target", "", "Discount label to book, e.g. 學生88折")
	fs.StringVar(&f.engine, "engine", "", "Browser driver: rod or playwright")
	fs.StringVar(&f.ua, "ua", "", "User-Agent override")
	fs.BoolVar(&f.headless, "headless", false, "Run the browser headless")
	fs.StringSliceVar(&f.proxies, "proxy", nil, "Proxy URL; repeat to rotate across rounds")
}

func (f *searchFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	setString(fs, "origin", f.origin, &cfg.Search.Origin)
	setString(fs, "dest", f.dest, &cfg.Search.Destination)
	setString(fs, "date", f.date, &cfg.Search.Date)
	setString(fs, "time", f.time, &cfg.Search.Time)
	setString(fs, "target", f.target, &cfg.Search.TargetDiscount)
	setString(fs, "engine", f.engine, &cfg.Browser.Engine)
	setString(fs, "ua", f.ua, &cfg.Browser.UserAgent)
	setInt(fs, "adult", f.adults, &cfg.Search.Adults)
	setInt(fs, "student", f.students, &cfg.Search.Students)
	if fs.Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if fs.Changed("proxy") {
		cfg.Browser.Proxies = f.proxies
		cfg.Browser.ProxiesFile = ""
	}
}

// loopFlags override config.Watch.
type loopFlags struct {
	until          string
	minSec, maxSec int
	maxRounds      int
}

func (f *loopFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.until, "until", "", "Stop at this time, e.g. \"2025-10-20 23:59\"")
	fs.IntVar(&f.minSec, "min-sec", 0, "Minimum wait between rounds in seconds")
	fs.IntVar(&f.maxSec, "max-sec", 0, "Maximum wait between rounds in seconds")
	fs.IntVar(&f.maxRounds, "max-rounds", 0, "Stop after this many rounds (0 = unlimited)")
}

func (f *loopFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	setString(fs, "until", f.until, &cfg.Watch.Until)
	setInt(fs, "min-sec", f.minSec, &cfg.Watch.IntervalMinSec)
	setInt(fs, "max-sec", f.maxSec, &cfg.Watch.IntervalMaxSec)
	setInt(fs, "max-rounds", f.maxRounds, &cfg.Watch.MaxRounds)
}

func setString(fs *pflag.FlagSet, name, v string, dst *string) {
	if fs.Changed(name) {
		*dst = v
	}
}

func setInt(fs *pflag.FlagSet, name string, v int, dst *int) {
	if fs.Changed(name) {
		*dst = v
	}
}
