package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/AdventureEngine/internal/api"
	"github.com/AaronLay10/AdventureEngine/internal/assets"
	"github.com/AaronLay10/AdventureEngine/internal/config"
	"github.com/AaronLay10/AdventureEngine/internal/events"
	"github.com/AaronLay10/AdventureEngine/internal/mqtt"
	"github.com/AaronLay10/AdventureEngine/internal/session"
	"github.com/AaronLay10/AdventureEngine/internal/storage/postgres"
	"github.com/AaronLay10/AdventureEngine/internal/storage/sqlite"
	"github.com/AaronLay10/AdventureEngine/internal/version"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.LoadSessionConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "adventure starting", map[string]interface{}{
		"service":  "adventure",
		"session":  cfg.Session.ID,
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	var sessOpts []session.Option
	var serverOpts []api.ServerOption

	// Postgres: event sink and/or content backend.
	var pg *postgres.Client
	if cfg.Events.Postgres || cfg.Content.Backend == config.BackendPostgres {
		pgCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return err
		}
		pg, err = postgres.New(pgCfg, cfg.Session.ID)
		if err != nil {
			if cfg.Content.Backend == config.BackendPostgres {
				return err
			}
			log.Printf("postgres unavailable, events stay in memory: %v", err)
		} else {
			defer pg.Close()
			serverOpts = append(serverOpts, api.WithPostgresProbe(pg.Healthy))
			if cfg.Events.Postgres {
				events.SetPostgresClient(pg)
				defer events.SetPostgresClient(nil)
			}
			if cfg.Content.Backend == config.BackendPostgres {
				sessOpts = append(sessOpts, session.WithLoader(assets.Blob("postgres", pg.Content)))
			}
		}
	}

	if cfg.Content.Backend == config.BackendSQLite {
		store, err := sqlite.Open(cfg.Content.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		sessOpts = append(sessOpts, session.WithLoader(assets.Blob("sqlite", store.Content)))
	}

	// MQTT: collaborators, remote fades, player commands, presence.
	var (
		mc       *mqtt.Client
		mqttCfg  mqtt.Config
		presence *mqtt.Presence
		remote   *mqtt.RemoteTransition
	)
	if cfg.Network.MQTT {
		mqttCfg, err = mqtt.ConfigFromEnv()
		if err != nil {
			return err
		}
		mc = mqtt.NewClient(mqttCfg)
		bridge := mqtt.NewBridge(mc, mqttCfg)
		sessOpts = append(sessOpts,
			session.WithStory(bridge),
			session.WithQuest(bridge),
			session.WithPanels(bridge),
		)
		if cfg.Transition.Mode == config.TransitionMQTT {
			remote = mqtt.NewRemoteTransition(mc, mqttCfg)
			sessOpts = append(sessOpts, session.WithTransition(remote))
		}
		presence = mqtt.NewPresence(2.0)
		serverOpts = append(serverOpts, api.WithMQTTProbe(mc.IsConnected), api.WithPresence(presence))
	}

	sess, err := session.New(cfg, sessOpts...)
	if err != nil {
		return err
	}
	defer sess.Teardown()

	auth, err := api.AuthFromEnv()
	if err != nil {
		return err
	}
	serverOpts = append(serverOpts, api.WithAuth(auth))

	tlsEnv, err := api.TLSFromEnv()
	if err != nil {
		return err
	}
	tlsCfg, err := tlsEnv.Load()
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	if mc != nil {
		intake := mqtt.NewCommandIntake(mc, sess.Navigator(), mqttCfg)
		mc.OnConnect(func() {
			if err := intake.Start(gCtx); err != nil {
				log.Printf("mqtt: command intake: %v", err)
			}
			if err := presence.Subscribe(mc, mqttCfg); err != nil {
				log.Printf("mqtt: presence: %v", err)
			}
			if remote != nil {
				if err := remote.Start(mc); err != nil {
					log.Printf("mqtt: transition acks: %v", err)
				}
			}
		})
		if err := mc.Connect(); err != nil {
			// paho keeps retrying in the background; OnConnect subscribes later.
			log.Printf("mqtt: initial connect to %s failed: %v", mqttCfg.URL, err)
		}
		defer mc.Disconnect()

		presence.Start(5 * time.Second)
		defer presence.Stop()
	}

	if err := sess.Start(gCtx); err != nil {
		return err
	}

	if cfg.Content.Watch {
		g.Go(func() error {
			return sess.Watch(gCtx)
		})
	}

	srv := api.NewServer(sess, serverOpts...)
	g.Go(func() error {
		return srv.Run(gCtx, fmt.Sprintf(":%d", cfg.HTTPPort()), tlsCfg)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			log.Printf("received %s, shutting down", sig)
			return errShutdown
		case <-gCtx.Done():
			return nil
		}
	})

	err = g.Wait()
	events.Emit("info", "system.shutdown", "adventure stopping", map[string]interface{}{
		"session": cfg.Session.ID,
	})
	if errors.Is(err, errShutdown) {
		return nil
	}
	return err
}

// errShutdown cancels the run group on a signal; it is not reported.
var errShutdown = errors.New("shutdown requested")
