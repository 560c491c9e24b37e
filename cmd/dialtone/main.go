// Command dialtone runs the voice note transcription service: an HTTP API
// that accepts audio uploads, normalizes them with ffmpeg, and transcribes
// them with a locally loaded whisper model.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/dialtone/api"
	"github.com/skillsenselab/dialtone/asr"
	"github.com/skillsenselab/dialtone/asr/whispercpp"
	"github.com/skillsenselab/dialtone/audio"
	"github.com/skillsenselab/dialtone/component"
	"github.com/skillsenselab/dialtone/config"
	"github.com/skillsenselab/dialtone/logger"
	"github.com/skillsenselab/dialtone/server"
	"github.com/skillsenselab/dialtone/transcribe"
	"github.com/skillsenselab/dialtone/upload"
	"github.com/skillsenselab/dialtone/version"
)

const serviceName = "dialtone"

// gracefulTimeout bounds how long shutdown waits for in-flight work.
const gracefulTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		logger.Fatal("failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)

	log.Info("starting service", map[string]interface{}{
		"name":        cfg.Name,
		"version":     version.GetShortVersion(),
		"environment": cfg.Environment,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited with error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	uploads, err := upload.NewService(cfg.Upload, log)
	if err != nil {
		return err
	}

	converter := audio.NewConverter(log)
	manager := asr.NewManager(whispercpp.New(), cfg.Whisper, log)
	pipeline := transcribe.NewPipeline(cfg.Transcribe, uploads, converter, manager, log)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()

	registry := component.NewRegistry()
	components := []component.Component{
		asr.NewComponent(manager, cfg.Whisper.Preload),
		upload.NewSweeperComponent(uploads, time.Hour),
		server.NewComponent(srv),
	}
	for _, c := range components {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	srv.RegisterDefaultEndpoints(cfg.Name, registry.HealthAll)
	api.NewAudioAPI(uploads, pipeline, log).RegisterRoutes(srv.GinEngine())

	ctx := context.Background()
	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	log.Info("service ready", map[string]interface{}{
		"addr": srv.Addr(),
	})

	waitForSignal(log)

	stopCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()
	if err := registry.StopAll(stopCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal(log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	log.Info("received shutdown signal", map[string]interface{}{
		"signal": sig.String(),
	})
}
