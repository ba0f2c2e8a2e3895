package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"aiswatch/internal/config"
	"aiswatch/internal/ingest"
	"aiswatch/internal/metric"
	"aiswatch/internal/output"
	"aiswatch/internal/track"
	"aiswatch/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./aiswatch.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := track.NewStore(track.StoreConfig{
		MaxVessels: cfg.Track.MaxVessels,
		TTL:        cfg.Track.TTL,
	})

	sinks := ingest.Tee{store}
	if cfg.UDP.Enable {
		udp, err := output.NewUDP(cfg.UDP.Dest)
		if err != nil {
			log.Fatalf("udp output init failed: %v", err)
		}
		defer udp.Close()
		sinks = append(sinks, udp)
		log.Printf("udp output dest=%s", cfg.UDP.Dest)
	}
	if cfg.NATS.Enable {
		pub, err := output.NewNATS(output.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		})
		if err != nil {
			log.Fatalf("nats output init failed: %v", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		log.Printf("nats output url=%s prefix=%s", cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	}

	arbiter := ingest.NewArbiter(sinks, ingest.DefaultLocalGrace)
	manager := ingest.NewManager(ingest.ManagerConfig{
		FragmentTimeout: cfg.FragmentTimeout,
	}, arbiter)
	defer manager.Close()

	onEvent := func(ev ingest.SourceEvent) {
		if ev.Detail != "" {
			log.Printf("source %s: %s (%s)", ev.Source, ev.Kind, ev.Detail)
			return
		}
		log.Printf("source %s: %s", ev.Source, ev.Kind)
	}

	feeds := []struct {
		name string
		cfg  config.FeedConfig
	}{
		{ingest.SourceCollector, cfg.Sources.Collector},
		{ingest.SourceLocal, cfg.Sources.Local},
	}
	for _, f := range feeds {
		if !f.cfg.Enabled {
			continue
		}
		err := manager.AddSource(ctx, ingest.SourceConfig{
			Name:                 f.name,
			Host:                 f.cfg.Host,
			Port:                 f.cfg.Port,
			Reconnect:            f.cfg.Reconnect,
			ReconnectInterval:    f.cfg.ReconnectInterval,
			MaxReconnectAttempts: f.cfg.MaxReconnectAttempts,
			OnEvent:              onEvent,
		})
		if err != nil {
			log.Fatalf("source %s init failed: %v", f.name, err)
		}
		log.Printf("source %s -> %s:%d", f.name, f.cfg.Host, f.cfg.Port)
	}

	log.Printf("aiswatch starting, web on %s", cfg.Web.Listen)

	metrics := metric.Handler(metric.NewRegistry(manager))
	handler := web.Handler(manager, store, metrics)
	if err := web.Serve(ctx, cfg.Web.Listen, handler); err != nil {
		log.Fatalf("web server failed: %v", err)
	}

	log.Printf("aiswatch stopping")
}
