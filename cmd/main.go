package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/royalcat/listingmap/apiclient"
	"github.com/royalcat/listingmap/clock"
	"github.com/royalcat/listingmap/config"
	"github.com/royalcat/listingmap/georect"
	"github.com/royalcat/listingmap/internal/telemetry"
	"github.com/royalcat/listingmap/listing"
	"github.com/royalcat/listingmap/locate"
	"github.com/royalcat/listingmap/readiness"
	"github.com/royalcat/listingmap/server"
	"github.com/urfave/cli/v3"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"
)

func main() {
	_ = godotenv.Load(".env")

	configFlags := []cli.Flag{
		&cli.StringFlag{
			Name:      "config",
			Aliases:   []string{"c"},
			Usage:     "config file, listingmap.yaml in the working directory by default",
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "api",
			Usage: "listings api base url, overrides api.base_url",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "log debug messages",
		},
	}

	app := &cli.App{
		Name:        "listingmap",
		Description: "Viewport driven listing markers and cards for a map view",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the listingmap api",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "overrides server.listen",
					},
					&cli.StringFlag{
						Name:  "otel-endpoint",
						Usage: "otlp/http endpoint for metrics, traces and logs",
					},
				}, configFlags...),
				Action: serve,
			},
			{
				Name:    "replay",
				Aliases: []string{"r"},
				Usage:   "replays recorded viewport traces against the listings api",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:      "input",
						Aliases:   []string{"i"},
						Required:  true,
						TakesFile: true,
					},
					&cli.IntFlag{
						Name:        "threads",
						Aliases:     []string{"t"},
						DefaultText: "max",
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "listing kind of the replayed sessions, residential or commercial",
						Value: "residential",
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "report process cpu and memory usage after the replay",
					},
				}, configFlags...),
				Action: replay,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}
	if api := ctx.String("api"); api != "" {
		cfg.API.BaseURL = api
	}
	if listen := ctx.String("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	return cfg, cfg.Validate()
}

func logLevel(ctx *cli.Context) slog.Level {
	if ctx.Bool("debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newAPIClient(cfg *config.Config, log *slog.Logger) (*apiclient.Client, map[listing.Kind]sources) {
	client := apiclient.New(cfg.API.BaseURL,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithLogger(log),
	)
	src := make(map[listing.Kind]sources, len(listing.Kinds))
	for _, kind := range listing.Kinds {
		markers, cards := cfg.API.Resources(kind)
		src[kind] = sources{
			markers: client.Resource(markers),
			cards:   client.Resource(cards),
		}
	}
	return client, src
}

func serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(runCtx, "listingmap", ctx.String("otel-endpoint"), logLevel(ctx))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tel.Shutdown(shutdownCtx)
	}()

	log := slog.Default()
	client, src := newAPIClient(cfg, log)

	// sessions hold their fetches until the listings api answers once
	cards := client.Resource(cfg.API.CardsResource)
	loader := readiness.New(cards.Ping, log)
	go startLoader(runCtx, loader, 5*time.Second)

	fallback := locate.Fallback{
		Default: georect.LatLng{Lat: cfg.Locate.DefaultLat, Lng: cfg.Locate.DefaultLng},
		Log:     log,
	}
	if cfg.Locate.GeoIPDB != "" {
		geo, err := locate.OpenGeoIP(cfg.Locate.GeoIPDB)
		if err != nil {
			return err
		}
		defer geo.Close()
		fallback.Locator = geo
	}

	srv := server.New(sessionFactory(cfg, src, clock.Real(), loader, log), fallback, cfg.Locate.Span, log)
	return server.Run(runCtx, cfg.Server.Listen, srv)
}

func startLoader(ctx context.Context, loader *readiness.Loader, retry time.Duration) {
	for {
		if loader.Start(ctx).Ready {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
