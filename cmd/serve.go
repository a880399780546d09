package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agroprophet/agroprophet/internal/forecast"
	"github.com/agroprophet/agroprophet/internal/reconcile"
	"github.com/agroprophet/agroprophet/internal/retrain"
	"github.com/agroprophet/agroprophet/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the price and prediction API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		artifacts, err := openArtifacts()
		if err != nil {
			return err
		}

		// Background retraining pipeline.
		trainer := forecast.NewTrainer(st, artifacts, catalog, cfg.Retrain.MinTrainSamples)
		sched := retrain.NewScheduler(cfg.Retrain.QueueSize)
		worker := retrain.NewWorker(sched, trainer, cfg.Retrain.Workers,
			time.Duration(cfg.Retrain.MinIntervalSecs)*time.Second)

		// Request path.
		engine := reconcile.NewEngine(st)
		window := reconcile.NewWindow(st, cfg.Drift.WindowWeeks, cfg.Drift.MinErrorPoints)
		detector := reconcile.NewDetector(window, cfg.Drift.RMSEThreshold, sched)
		forecaster := forecast.NewForecaster(st, artifacts, catalog)

		api := server.New(st, engine, detector, forecaster, cfg.Server.StaticDir)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.Router(cfg.Server.CORSOrigins),
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return worker.Run(gctx)
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
