package main

import (
	"flag"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"routing-node/internal/crypto"
	"routing-node/internal/netx"
	"routing-node/internal/paths"
)

type options struct {
	Listen         string
	Bootstrap      string
	BeaconPort     uint
	NoBeacon       bool
	Discover       bool
	DataDir        string
	NoContacts     bool
	Debug          bool
	ContactsPeriod time.Duration
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.Listen, "listen", "tcp:0.0.0.0:0", "comma-separated listen endpoints (tcp:host:port)")
	flag.StringVar(&o.Bootstrap, "bootstrap", "", "comma-separated bootstrap endpoints")
	flag.UintVar(&o.BeaconPort, "beacon-port", uint(netx.DefaultBeaconPort), "UDP beacon port")
	flag.BoolVar(&o.NoBeacon, "no-beacon", false, "do not answer beacon pings")
	flag.BoolVar(&o.Discover, "discover", true, "look for peers on the local network at startup")
	flag.StringVar(&o.DataDir, "data", "", "data directory (default $"+paths.EnvDataDir+" or the user config dir)")
	flag.BoolVar(&o.NoContacts, "no-contacts", false, "do not persist contacts")
	flag.BoolVar(&o.Debug, "debug", false, "debug logging")
	flag.DurationVar(&o.ContactsPeriod, "contacts-period", time.Minute, "how often contacts are saved")
	flag.Parse()
	return o
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func main() {
	opts := parseFlags()
	logger := newLogger(opts.Debug)
	defer func() { _ = logger.Sync() }()

	cc, err := crypto.Init()
	if err != nil {
		logger.Fatal("crypto init failed", zap.Error(err))
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Supply(opts, logger, cc),
		fx.Provide(
			newNodeConfig,
			newContactsStore,
			newNode,
		),
		fx.Invoke(registerNode),
	)
	app.Run()
}
