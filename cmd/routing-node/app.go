package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"routing-node/internal/bootstrap"
	"routing-node/internal/crypto"
	"routing-node/internal/p2p"
	"routing-node/internal/paths"
	"routing-node/internal/persona"
	"routing-node/internal/storage/contactsbolt"
	"routing-node/internal/types"
)

func newNodeConfig(o options, store *contactsbolt.Store, log *zap.Logger) (p2p.Config, error) {
	listen, err := parseEndpoints(o.Listen)
	if err != nil {
		return p2p.Config{}, err
	}
	static, err := parseEndpoints(o.Bootstrap)
	if err != nil {
		return p2p.Config{}, err
	}

	cfg := p2p.DefaultConfig()
	cfg.Listen = listen
	cfg.Bootstrap = static
	cfg.Logger = log
	cfg.Genesis = persona.NewFactory(log)
	if store != nil {
		cfg.DialFailed = markDialFailed(store, log)
	}
	if o.NoBeacon {
		cfg.BeaconPort = nil
	} else {
		port := uint16(o.BeaconPort)
		cfg.BeaconPort = &port
	}
	return cfg, nil
}

// newContactsStore opens the contact book, or returns nil when persistence
// is disabled.
func newContactsStore(lc fx.Lifecycle, o options) (*contactsbolt.Store, error) {
	if o.NoContacts {
		return nil, nil
	}
	layout := paths.Resolve(o.DataDir)
	if err := layout.Ensure(); err != nil {
		return nil, err
	}
	store, err := contactsbolt.Open(layout.ContactsDB())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
	return store, nil
}

// markDialFailed counts failed dials against stored contacts so that
// bootstrap stops offering endpoints that keep failing.
func markDialFailed(store *contactsbolt.Store, log *zap.Logger) func(types.Endpoint) {
	return func(ep types.Endpoint) {
		if err := store.MarkFailure(ep); err != nil {
			log.Warn("mark contact failure", zap.Stringer("endpoint", ep), zap.Error(err))
		}
	}
}

func newNode(cc *crypto.Context, cfg p2p.Config) (*p2p.Node, error) {
	return p2p.New(cc, cfg)
}

func registerNode(lc fx.Lifecycle, n *p2p.Node, store *contactsbolt.Store, o options, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := n.RunMembrane(); err != nil {
				return err
			}
			go func() {
				defer close(done)
				if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("node stopped", zap.Error(err))
				}
			}()

			sources := []bootstrap.PeerSource{}
			if store != nil {
				sources = append(sources, bootstrap.ContactsSource{Store: store, MaxFailures: 3, Limit: 32})
			}
			if o.Discover {
				sources = append(sources, bootstrap.BeaconSource{Port: uint16(o.BeaconPort)})
			}
			go func() {
				dialed := bootstrap.RunOnce(ctx, n, bootstrap.DefaultConfig(), log, sources...)
				log.Info("bootstrap round", zap.Int("dialed", len(dialed)))
			}()

			if store != nil {
				go saveContactsLoop(ctx, n, store, o.ContactsPeriod, log)
			}

			log.Info("node started",
				zap.Stringer("name", n.Name()),
				zap.Stringers("accepting", n.AcceptingOn()))
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			if store != nil {
				saveContacts(n, store, log)
			}
			return n.Close()
		},
	})
}

func saveContactsLoop(ctx context.Context, n *p2p.Node, store *contactsbolt.Store, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			saveContacts(n, store, log)
		}
	}
}

func saveContacts(n *p2p.Node, store *contactsbolt.Store, log *zap.Logger) {
	saved := 0
	for _, ni := range n.Contacts() {
		for _, ep := range ni.Endpoints {
			if !dialable(ep) {
				continue
			}
			if err := store.Record(ep, ni.Name(), ni.LastSeen); err != nil {
				log.Warn("save contact", zap.Stringer("endpoint", ep), zap.Error(err))
				continue
			}
			saved++
		}
	}
	log.Debug("contacts saved", zap.Int("count", saved))
}
