package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"randomvoice/native/internal/api"
	"randomvoice/native/internal/call"
	"randomvoice/native/internal/config"
	"randomvoice/native/internal/media"
	"randomvoice/native/internal/metric"
	sigclient "randomvoice/native/internal/signal"
	"randomvoice/native/internal/webrtc"
)

const helpText = `randomvoice - Talk to a random stranger over a WebRTC audio call

Usage:
  randomvoice [options]

Microphone audio is read as RTP/Opus from RV_CAPTURE_ADDR and the partner's
audio is written to RV_PLAYBACK_PATH as Ogg/Opus.

Environment Variables:
  RV_API                   Matchmaking server base URL (required)
  RV_NICKNAME              Nickname (prompted when empty)
  RV_ICE_SERVERS           JSON list of {"urls","username","credential"}
  RV_ICE_URL               TURN credential endpoint returning such a list
  RV_CAPTURE_ADDR          UDP capture address (default 127.0.0.1:5004)
  RV_PLAYBACK_PATH         Playback file (default partner.ogg)
  RV_METRICS_ADDR          Debug HTTP address for /metrics and /state
  RV_CONNECTIVITY_TIMEOUT  Give up on a broken connection after (default 15s)
  RV_PING_INTERVAL         WebSocket keepalive interval (default 25s)
  RV_DEBUG                 Enable debug logging

Examples:
  # Capture the default microphone
  ffmpeg -f pulse -i default -c:a libopus -f rtp rtp://127.0.0.1:5004

  # Listen to the partner while the call runs
  tail -c +1 -f partner.ogg | ffplay -

Commands (type while running):
  n  next partner    e  end call    s  search again
  r  resume audio    q  quit        h  help

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nickname := strings.TrimSpace(cfg.Nickname)
	if nickname == "" {
		nickname, _ = pterm.DefaultInteractiveTextInput.
			WithDefaultText("Your cool nickname").
			Show()
		pterm.Println()
	}

	metrics := metric.New()
	ui := newUI()

	// Step 1: Capture and playback
	capturer := &media.UDPSource{Addr: cfg.CaptureAddr, OnRelease: metrics.MediaReleased}
	player := media.NewOggPlayer(cfg.PlaybackPath)

	// Step 2: Peer sessions
	iceServers := cfg.ICEServers
	if cfg.ICEURL != "" {
		fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		servers, err := api.NewClient(nil).FetchICEServers(fctx, cfg.ICEURL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("fetch ice servers, using configured list")
		} else {
			iceServers = servers
		}
	}
	peers := webrtc.NewFactory(iceServers)

	// Step 3: Controller
	ctrl := call.New(call.Options{
		API:                 cfg.API,
		Capturer:            capturer,
		NewPeer:             peers.New,
		Player:              player,
		OnEvent:             ui.render,
		Metrics:             metrics,
		ConnectivityTimeout: cfg.ConnectivityTimeout,
	})

	// Step 4: Signaling link delivering into the controller
	link := sigclient.NewLink(ctrl.HandleMessage,
		sigclient.WithOnDown(ctrl.HandleLinkDown),
		sigclient.WithPingInterval(cfg.PingInterval),
		sigclient.WithObserver(metrics.ObserveMessage),
	)

	// Step 5: Complete the circular dependency
	ctrl.SetSignaler(link)

	done := make(chan struct{})
	go func() {
		ctrl.Run(ctx)
		close(done)
	}()

	// Step 6: Debug server
	if cfg.MetricsAddr != "" {
		srv := metric.NewServer(cfg.MetricsAddr, metrics, func() any {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			snap, _ := ctrl.Snapshot(sctx)
			return snap
		})
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("metrics server")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(sctx)
			}()
		}
	}

	// Step 7: Enter the queue
	pterm.Info.Println("Looking for a partner...")
	if err := ctrl.StartSearch(ctx, nickname); err != nil {
		pterm.Error.Println(describe(err))
	}

	// Step 8: User commands
	go readCommands(ctx, os.Stdin, ctrl, nickname, stop)

	<-ctx.Done()
	log.Info().Msg("shutting down")
	<-done
	log.Info().Msg("done")
}
