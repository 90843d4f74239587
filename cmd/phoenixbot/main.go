// Command phoenixbot runs the club's Discord role bot: it connects to the
// configured storage backend, reconciles member roles on startup when asked
// to, keeps them reconciled through the change poller, and optionally
// mirrors the Google Sheets member directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phoenixclub/phoenix-bot/autosync"
	"github.com/phoenixclub/phoenix-bot/discord"
	"github.com/phoenixclub/phoenix-bot/phoenix"
	"github.com/phoenixclub/phoenix-bot/rolesync"
	"github.com/phoenixclub/phoenix-bot/sheetdir"
	"github.com/phoenixclub/phoenix-bot/storage"
	storagesql "github.com/phoenixclub/phoenix-bot/storage/sql"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "storage.json", "path to the storage provider configuration")
	fullSync := flag.Bool("full-sync", false, "reconcile every guild member at startup")
	sheetCreds := flag.String("sheet-credentials", "", "path to Google service account credentials for the directory sheet")
	sheetID := flag.String("sheet-id", "", "spreadsheet id of the member directory")
	sheetRange := flag.String("sheet-range", "Membri!A:Z", "sheet range holding the member directory")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to create logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, *configPath, *fullSync, *sheetCreds, *sheetID, *sheetRange); err != nil {
		log.Fatal("phoenixbot exited", zap.Error(err))
	}
}

func run(log *zap.Logger, configPath string, fullSync bool, sheetCreds, sheetID, sheetRange string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(configPath)
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.GetSettings(phoenix.SettingBotToken, phoenix.SettingGuildID)
	if err != nil {
		return fmt.Errorf("unable to read bot settings: %w", err)
	}
	botToken := settings[phoenix.SettingBotToken]
	guildID := settings[phoenix.SettingGuildID]
	if botToken == "" || guildID == "" {
		return fmt.Errorf("settings %s and %s must be configured",
			phoenix.SettingBotToken, phoenix.SettingGuildID)
	}

	client, err := discord.New(botToken)
	if err != nil {
		return err
	}
	if err := client.Open(); err != nil {
		return fmt.Errorf("unable to open discord session: %w", err)
	}
	defer client.Close()

	service := rolesync.New(store, client, log)

	if fullSync {
		summary, err := service.SyncAll(ctx, guildID)
		if err != nil {
			return fmt.Errorf("startup full sync: %w", err)
		}
		log.Info("startup full sync finished",
			zap.Int("total", summary.Total),
			zap.Int("errors", summary.ErrorCount))
	}

	if sheetID != "" {
		if err := syncDirectory(ctx, log, client, guildID, sheetCreds, sheetID, sheetRange); err != nil {
			return err
		}
	}

	poller := autosync.New(store, service, log)
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("unable to start auto sync: %w", err)
	}
	defer poller.Stop()

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func openStore(configPath string) (storage.Provider, error) {
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read storage config: %w", err)
	}

	store, err := storage.Load(configBytes)
	if err != nil {
		return nil, err
	}

	// SQLite-backed deployments own their schema; MySQL deployments share it
	// with the web dashboard, which runs its own migrations.
	if sqlStore, ok := store.(*storagesql.Provider); ok && (sqlStore.SqlLite || sqlStore.UseTurso) {
		if err := sqlStore.Initialize(); err != nil {
			return nil, fmt.Errorf("unable to initialize storage: %w", err)
		}
		return store, nil
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("unable to connect storage: %w", err)
	}
	return store, nil
}

func syncDirectory(ctx context.Context, log *zap.Logger, client *discord.Client, guildID, credsPath, sheetID, sheetRange string) error {
	credentials, err := os.ReadFile(credsPath)
	if err != nil {
		return fmt.Errorf("unable to read sheet credentials: %w", err)
	}

	directory, err := sheetdir.NewDirectory(ctx, credentials, sheetID, sheetRange)
	if err != nil {
		return err
	}

	_, err = sheetdir.NewSyncer(directory, client, log).Sync(ctx, guildID)
	if err != nil {
		return fmt.Errorf("directory sync: %w", err)
	}
	return nil
}
