package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is the default configuration file
	ConfigFileName = "vmesrv.yml"
)

// BusSetup selects the bus the modules are on
type BusSetup struct {
	// Kind is sim or mmap
	Kind string `koanf:"kind" yaml:"kind"`

	// Device is the controller device file; it defaults to /dev/v120_q<controller>
	Device string `koanf:"device" yaml:"device"`

	// Controller is the number of the V120 crate controller
	Controller int `koanf:"controller" yaml:"controller"`

	// Swap byte swaps register accesses, for controllers that do not
	Swap bool `koanf:"swap" yaml:"swap"`
}

// ModuleSetup describes one module in the crate
type ModuleSetup struct {
	// Type is one of v210, v230, v230-2, v230-21, v280; case insensitive
	Type string `koanf:"type" yaml:"type"`

	// Address is the base address on the bus
	Address uint32 `koanf:"address" yaml:"address"`

	// Mode is a16 or a24
	Mode string `koanf:"mode" yaml:"mode"`

	// Name tags the region
	Name string `koanf:"name" yaml:"name"`

	// Endpoint is the URL the routes of the module are served under, e.g.
	// /crate1/relays.  It defaults to /<name>.
	Endpoint string `koanf:"endpoint" yaml:"endpoint"`
}

// Config is the configuration of the server
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"addr" yaml:"addr"`

	// Log is dev or prod
	Log string `koanf:"log" yaml:"log"`

	Bus BusSetup `koanf:"bus" yaml:"bus"`

	// PollInterval is the interval macro busy bits are polled at
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval"`

	// Settle is waited before relay readback
	Settle time.Duration `koanf:"settle" yaml:"settle"`

	// RebootDelay is how long a V230 reboot blocks
	RebootDelay time.Duration `koanf:"reboot_delay" yaml:"reboot_delay"`

	// ScanRate limits bulk voltage scans, per second; zero does not limit
	ScanRate float64 `koanf:"scan_rate" yaml:"scan_rate"`

	// Metrics is the path Prometheus metrics are served on; empty disables them
	Metrics string `koanf:"metrics" yaml:"metrics"`

	Modules []ModuleSetup `koanf:"modules" yaml:"modules"`
}

func defaults() Config {
	return Config{
		Addr:        ":8000",
		Log:         "prod",
		Bus:         BusSetup{Kind: "mmap"},
		Settle:      25 * time.Millisecond,
		RebootDelay: 6 * time.Second,
		Metrics:     "/metrics",
		Modules:     []ModuleSetup{},
	}
}

// setupconfig layers the defaults, the config file and the command line
func setupconfig(args []string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	fs := pflag.NewFlagSet("vmesrv", pflag.ContinueOnError)
	cfgFile := fs.StringP("config", "c", ConfigFileName, "configuration file")
	fs.String("addr", "", "address to listen at")
	fs.String("log", "", "logger, dev or prod")
	fs.String("bus.kind", "", "bus backend, sim or mmap")
	fs.String("bus.device", "", "controller device file")
	fs.String("metrics", "", "path to serve metrics on")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(*cfgFile), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, err
	}
	return k, nil
}

func root() {
	str := `vmesrv drives the Highland Technology modules in a VME crate and exposes
them over HTTP, one set of routes per module.

Usage:
	vmesrv <command> [--config file] [--addr :8000] [--bus.kind sim]

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `vmesrv is configured with its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Without any modules, the server will exit immediately with an error.

No two modules can have the same endpoint.  Endpoints may look like any
variation of "crate/relays" or "/crate/relays/"; the leading slash is added
and the trailing slash removed.

Module "type" fields, case insensitive:
- Highland Technology
	> V210 64 channel relay module "v210"
	> V230 64 channel analog input module "v230", "v230-2", "v230-21"
	> V280 48 channel digital input module "v280"

Addressing "mode" is "a16" or "a24".  The bus "kind" is "mmap" for a V120
crate controller, or "sim" to serve simulated modules for development.

GET <endpoint>/endpoints lists the routes of a module, and GET /endpoints
every route of the crate.  POST <endpoint>/lock {"bool": true} reserves a
module; every other route then replies 423 until it is unlocked.`
	fmt.Println(str)
}

func mkconf(k *koanf.Koanf, path string) error {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(c)
}

func printconf(k *koanf.Koanf, w io.Writer) error {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return err
	}
	return yml.NewEncoder(w).Encode(c)
}

func pversion() {
	fmt.Printf("vmesrv version %v\n", Version)
}

func newLogger(kind string) (*zap.Logger, error) {
	switch strings.ToLower(kind) {
	case "dev", "development":
		return zap.NewDevelopment()
	case "prod", "production", "":
		return zap.NewProduction()
	default:
		return nil, fmt.Errorf("log %q, must be a member of {dev, prod}", kind)
	}
}

func run(ctx context.Context, k *koanf.Koanf) error {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return err
	}
	lg, err := newLogger(c.Log)
	if err != nil {
		return err
	}
	defer lg.Sync()
	cr, err := Assemble(c, lg)
	if err != nil {
		return err
	}
	defer cr.Close()
	srv := &http.Server{Addr: c.Addr, Handler: cr.Mux}
	errs := make(chan error, 1)
	go func() {
		lg.Info("now listening for requests", zap.String("addr", c.Addr))
		errs <- srv.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	lg.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
		return
	case "version":
		pversion()
		return
	}
	k, err := setupconfig(args[2:])
	if err != nil {
		log.Fatal(err)
	}
	switch cmd {
	case "mkconf":
		err = mkconf(k, k.String("config"))
	case "conf":
		err = printconf(k, os.Stdout)
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = run(ctx, k)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
