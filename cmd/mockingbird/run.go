package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	microphone "github.com/deepgram/deepgram-go-sdk/v3/pkg/audio/microphone"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/mockingbird/internal/auth"
	"github.com/sjawhar/mockingbird/internal/backend"
	"github.com/sjawhar/mockingbird/internal/capture"
	"github.com/sjawhar/mockingbird/internal/config"
	"github.com/sjawhar/mockingbird/internal/gdrive"
	"github.com/sjawhar/mockingbird/internal/interview"
	"github.com/sjawhar/mockingbird/internal/media"
	"github.com/sjawhar/mockingbird/internal/notify"
	"github.com/sjawhar/mockingbird/internal/rtc"
	"github.com/sjawhar/mockingbird/internal/server"
	"github.com/sjawhar/mockingbird/internal/session"
	"github.com/sjawhar/mockingbird/internal/storage"
)

func run(ctx context.Context, configPath, sessionID, interviewID string) error {
	log.Println("mockingbird: starting")

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	if interviewID == "" {
		return errors.New("--interview is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	creds := auth.StaticCredentials(cfg.APIToken)
	userID, err := creds.UserID()
	if err != nil {
		log.Printf("warning: cannot derive user id from token: %v", err)
		userID = cfg.UserName
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	hub := server.NewHub()
	archive := capture.NewArchive(cfg.CaptureDir)
	backendClient := backend.New(cfg.BackendURL, creds)
	mediaCoord := media.New(rtc.New(cfg.MediaGatewayURL), backendClient)

	notifier := notify.NewManager(notify.Config{
		URL:               cfg.PushGatewayURL,
		UserID:            userID,
		HeartbeatInterval: cfg.ParsedHeartbeatInterval(),
		Reconnect: notify.ReconnectPolicy{
			MaxAttempts:  cfg.ReconnectMaxAttempts,
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
		},
	})
	defer notifier.ForceDisconnect()

	exporter := &journalExporter{
		exporter: storage.NewExporter(cfg.JournalDir),
		dir:      cfg.JournalDir,
	}
	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			exporter.syncer = syncer
		}
	}

	manager, err := session.NewManager(session.Config{
		SessionID:   sessionID,
		InterviewID: interviewID,
		UserName:    cfg.UserName,
		Budget:      cfg.QuestionBudget,
	}, session.Deps{
		Source:   backendClient,
		Media:    mediaCoord,
		Notifier: notifier,
		Journal:  store,
		Archive:  archive,
		Hub:      hub,
		Exporter: exporter,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}

	handler, err := server.Handler(assets, hub, store, server.ControlHooks{
		Status: func() server.Status {
			s := manager.Snapshot()
			return server.Status{
				SessionID:     manager.SessionID(),
				Step:          s.Step.String(),
				QuestionIndex: s.Index,
				QuestionCount: len(s.Questions),
				Remaining:     s.Remaining,
				MediaPhase:    mediaCoord.Phase().String(),
				PushState:     notifier.State().String(),
			}
		},
		Advance:  func() error { return manager.Advance(context.Background()) },
		Warnings: func() []string { return warnings },
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Mirror push-channel state transitions onto the observer feed.
	g.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		last := notifier.State()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if s := notifier.State(); s != last {
					last = s
					hub.BroadcastPushStateChanged(s.String())
				}
			}
		}
	})

	microphone.Initialize()
	defer microphone.Teardown()

	var mic *microphone.Microphone
	selectedSampleRate := cfg.MicSampleRate
	for _, rate := range cfg.SampleRateCandidates() {
		mic, err = microphone.New(microphone.AudioConfig{InputChannels: 1, SamplingRate: float32(rate)})
		if err != nil {
			log.Printf("warning: microphone open failed at %d Hz: %v", rate, err)
			continue
		}
		selectedSampleRate = rate
		break
	}

	if mic == nil {
		log.Printf("warning: microphone unavailable, publishing no local audio")
	} else {
		archive.SetSampleRate(selectedSampleRate)
		if err := mic.Start(); err != nil {
			log.Printf("warning: microphone start failed at %d Hz: %v", selectedSampleRate, err)
			mic = nil
		} else {
			log.Printf("microphone started at %d Hz", selectedSampleRate)
			micWriter := archive.Writer(mediaCoord)
			g.Go(func() error {
				streamMicWithRetry(gctx, mic, micWriter, time.Sleep, log.Printf)
				return nil
			})
		}
	}

	if err := manager.Start(ctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	if err := manager.StartAnswer(ctx); err != nil {
		log.Printf("warning: first answer not started: %v", err)
	}

	log.Printf("mockingbird: observer UI on http://%s", cfg.ListenAddr)

	complete := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return
			case <-ticker.C:
				if manager.Snapshot().Step == interview.StepComplete {
					close(complete)
					return
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Println("mockingbird: shutting down")
	case <-complete:
		log.Println("mockingbird: interview complete")
	case <-gctx.Done():
	}

	cancel()
	mediaCoord.LeaveSession()
	if mic != nil {
		_ = mic.Stop()
	}

	return g.Wait()
}

// journalExporter writes the day's journal file and, when configured,
// mirrors it to Google Drive.
type journalExporter struct {
	exporter *storage.Exporter
	dir      string
	syncer   *gdrive.Syncer
}

func (e *journalExporter) Export(sess storage.Session, answers []storage.Answer) error {
	if err := e.exporter.Export(sess, answers); err != nil {
		return err
	}

	if e.syncer != nil {
		date := sess.StartedAt.Format("2006-01-02")
		path := filepath.Join(e.dir, date+".md")
		if err := e.syncer.Sync(path, date); err != nil {
			log.Printf("gdrive sync error: %v", err)
		}
	}
	return nil
}

type micStreamer interface {
	Stream(writer io.Writer) error
}

func streamMicWithRetry(
	ctx context.Context,
	streamer micStreamer,
	writer io.Writer,
	wait func(time.Duration),
	logf func(string, ...any),
) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := streamer.Stream(writer)
		if err == nil || ctx.Err() != nil {
			return
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logf("warning: mic input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		logf("mic stream error: %v", err)
		return
	}
}
