package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/swappy/picora/internal/auth"
	"github.com/swappy/picora/internal/backup"
	"github.com/swappy/picora/internal/booking"
	"github.com/swappy/picora/internal/config"
	"github.com/swappy/picora/internal/database"
	"github.com/swappy/picora/internal/logging"
	"github.com/swappy/picora/internal/photos"
	"github.com/swappy/picora/internal/server"
	"github.com/swappy/picora/internal/workbook"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the booking HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Load guests, settings and time slots from a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0])
		},
	}
}

func newExportCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every appointment to a workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Workbook path (defaults to a timestamped file in the export directory)")
	return cmd
}

func newWipeCommand() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all appointments, guests, photographers, occasions and time slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("wipe requires --yes")
			}
			return runWipe(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the wipe")
	return cmd
}

// storage bundles what offline commands need.
type storage struct {
	cfg     config.AppConfig
	logger  *zap.Logger
	service *booking.Service
}

func openStorage(load func(*viper.Viper) (config.AppConfig, error)) (*storage, func(), error) {
	appConfig, err := load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	service, err := booking.NewService(booking.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Location: appConfig.Location,
		Logger:   logger,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		_ = sqlDB.Close()
		_ = logger.Sync()
	}
	return &storage{cfg: appConfig, logger: logger, service: service}, cleanup, nil
}

func runServer(ctx context.Context) error {
	store, cleanup, err := openStorage(config.Load)
	if err != nil {
		return err
	}
	defer cleanup()
	appConfig, logger := store.cfg, store.logger

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "picora-auth",
		Audience:      "picora-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	authenticator, err := auth.NewOperatorAuthenticator(appConfig.OperatorPIN)
	if err != nil {
		return err
	}

	photoStore, err := photos.NewStore(photos.StoreConfig{
		Directory:  appConfig.PhotosDirectory,
		IDProvider: photos.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	streamsCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		BookingService: store.service,
		Importer:       workbook.NewImporter(workbook.ImporterConfig{Logger: logger}),
		Photos:         photoStore,
		TokenManager:   tokenManager,
		Authenticator:  authenticator,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
		StreamsDone:    streamsCtx.Done(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}
	// Shutdown waits for active requests, so open event streams are ended when it starts.
	httpServer.RegisterOnShutdown(stopStreams)

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	if appConfig.ExportSchedule != "" {
		scheduler, err := backup.NewScheduler(backup.Config{
			Schedule:  appConfig.ExportSchedule,
			Directory: appConfig.ExportDirectory,
			Source:    store.service,
			Location:  appConfig.Location,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			scheduler.Run(signalCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		workers.Wait()
		return err
	case err := <-errCh:
		stop()
		workers.Wait()
		return err
	}
}

func runImport(ctx context.Context, path string) error {
	store, cleanup, err := openStorage(config.LoadStorage)
	if err != nil {
		return err
	}
	defer cleanup()

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := workbook.NewImporter(workbook.ImporterConfig{Logger: store.logger}).Read(ctx, file)
	if err != nil {
		return err
	}
	summary, err := store.service.ApplyImport(ctx, result.Batch)
	if err != nil {
		return err
	}

	store.logger.Info("workbook imported",
		zap.String("path", path),
		zap.Bool("guests_replaced", summary.GuestsReplaced),
		zap.Bool("photographers_replaced", summary.PhotographersReplaced),
		zap.Bool("occasions_replaced", summary.OccasionsReplaced),
		zap.Bool("time_slots_merged", summary.TimeSlotsMerged),
		zap.Int("time_slot_count", summary.TimeSlotCount))
	return nil
}

func runExport(ctx context.Context, output string) error {
	store, cleanup, err := openStorage(config.LoadStorage)
	if err != nil {
		return err
	}
	defer cleanup()

	if output != "" {
		appointments, err := store.service.ListAppointmentsIncludingDeleted(ctx)
		if err != nil {
			return err
		}
		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := backup.WriteFile(output, appointments, store.cfg.Location); err != nil {
			return err
		}
		store.logger.Info("appointments exported", zap.String("path", output), zap.Int("appointments", len(appointments)))
		return nil
	}

	exporter, err := backup.NewScheduler(backup.Config{
		Directory: store.cfg.ExportDirectory,
		Source:    store.service,
		Location:  store.cfg.Location,
		Logger:    store.logger,
	})
	if err != nil {
		return err
	}
	path, err := exporter.ExportNow(ctx)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runWipe(ctx context.Context) error {
	store, cleanup, err := openStorage(config.LoadStorage)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.service.WipeAll(ctx); err != nil {
		return err
	}
	store.logger.Info("booking data wiped", zap.String("database", store.cfg.DatabasePath))
	return nil
}
