package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fabfetch/internal/cli"
	"fabfetch/internal/config"
	"fabfetch/internal/domain"
	"fabfetch/internal/names"
	"fabfetch/internal/netx"
	"fabfetch/internal/store"
)

var (
	newLogger    = func() loggerAPI { return cli.NewLogger() }
	loadConfigFn = config.Load
	exitFn       = cli.Exit
	openStoreFn  = func(path string) (ledgerAPI, error) { return store.Open(path) }
	buildRuntime = defaultRuntime
)

type loggerAPI interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Success(msg string)
	Failure(msg string)
}

type platformAPI interface {
	Login(ctx context.Context, email, password string) (domain.User, error)
	FetchUser(ctx context.Context) (domain.User, error)
	FetchLatestMessages(ctx context.Context, groupID int64) ([]domain.Message, error)
}

type processorAPI interface {
	HandleMessage(ctx context.Context, m domain.Message, progress domain.ProgressFunc) (domain.ProcessOutcome, error)
}

type profileAPI interface {
	ArchiveProfiles(ctx context.Context, users []domain.FabUser) ([]domain.SavedMedia, error)
}

type ledgerAPI interface {
	HasMessage(id int64) (bool, error)
	SaveMessage(m domain.Message, result domain.ProcessResult, media []domain.SavedMedia) error
	UpsertArtist(id int64, name, enName string) error
	HasProfileMedia(url string) (bool, error)
	SaveProfileMedia(artistID int64, kind domain.ProfileMediaKind, url, path string) error
	Close() error
}

// defaultRuntime wires the production collaborators from config: one HTTP
// client tuned for API calls and another for CDN probing and downloads.
func defaultRuntime(cfg config.Config, ledger ledgerAPI) (platformAPI, processorAPI, profileAPI, *names.Book, error) {
	book, err := names.Load(cfg.NamesFile)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	apiNet := netx.NewClient(cfg.Timeout, netx.RetryPolicy{Attempts: 3, BaseDelay: 300 * time.Millisecond, MaxDelay: 2 * time.Second})
	// The probe client's timeout bounds each search probe, including the
	// read of a captured body. Downloads get a wider window and do their
	// own retrying.
	probeNet := netx.NewClient(2*time.Minute, netx.RetryPolicy{Attempts: 1})
	cdnNet := netx.NewClient(10*time.Minute, netx.RetryPolicy{Attempts: 1})

	client := domain.NewClient(apiNet, domain.ClientOptions{
		BaseURL:     cfg.APIURL,
		UserAgent:   cfg.UserAgent,
		AppVersion:  cfg.AppVersion,
		UserID:      cfg.UserID,
		AccessToken: cfg.AccessToken,
	})
	downloader := domain.NewDownloader(cdnNet)
	processor := domain.NewProcessor(
		client,
		domain.NewDiscoverer(probeNet),
		downloader,
		book,
		domain.ProcessorOptions{
			DownloadRoot:   cfg.DownloadFolder,
			MonthlyFolders: cfg.MonthlyFolders,
			PayForUserIDs:  cfg.PayForUserIDs,
			DecryptAll:     cfg.DecryptAll,
			PayOnFallback:  cfg.PayOnFallback,
		},
	)
	profiles := domain.NewProfileArchiver(downloader, ledger, book, domain.ProfileArchiverOptions{
		DownloadRoot:   cfg.DownloadFolder,
		MonthlyFolders: cfg.MonthlyFolders,
	})
	return client, processor, profiles, book, nil
}

func execute(ctx context.Context, args []string, logger loggerAPI) int {
	cfg, err := loadConfigFn(cli.ParseArgs(args))
	if err != nil {
		logger.Error(err.Error())
		return 1
	}

	ledger, err := openStoreFn(cfg.DBPath)
	if err != nil {
		logger.Error("open ledger: " + err.Error())
		return 1
	}
	defer ledger.Close()

	api, processor, profiles, book, err := buildRuntime(cfg, ledger)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}

	if err := authenticate(ctx, cfg, api, logger); err != nil {
		logger.Error(err.Error())
		return 1
	}

	failed := runOnce(ctx, cfg, api, processor, profiles, ledger, book, logger)
	for cfg.WatchInterval > 0 {
		logger.Info(fmt.Sprintf("Watching for new messages every %s", cfg.WatchInterval))
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return 0
		case <-time.After(cfg.WatchInterval):
		}
		failed = runOnce(ctx, cfg, api, processor, profiles, ledger, book, logger)
	}
	if failed > 0 {
		return 2
	}
	return 0
}

// authenticate either verifies the configured token or logs in with
// email/password. A platform app-version rejection is fatal: every later call
// would fail the same way until FAB_VERSION is updated.
func authenticate(ctx context.Context, cfg config.Config, api platformAPI, logger loggerAPI) error {
	if cfg.AccessToken != "" && cfg.UserID > 0 {
		user, err := api.FetchUser(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrAppVersionMismatch) {
				return fmt.Errorf("app version %q rejected, update FAB_VERSION", cfg.AppVersion)
			}
			return fmt.Errorf("verify access token: %w", err)
		}
		logger.Info(fmt.Sprintf("Authenticated as %s (%d points)", user.NickName, user.Points))
		return nil
	}
	user, err := api.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAppVersionMismatch) {
			return fmt.Errorf("app version %q rejected, update FAB_VERSION", cfg.AppVersion)
		}
		return fmt.Errorf("login: %w", err)
	}
	logger.Success(fmt.Sprintf("Logged in as %s (%d points)", user.NickName, user.Points))
	return nil
}

// runOnce fetches the latest messages and processes the unseen ones through a
// bounded worker pool. It returns the number of failed messages.
func runOnce(ctx context.Context, cfg config.Config, api platformAPI, processor processorAPI, profiles profileAPI, ledger ledgerAPI, book *names.Book, logger loggerAPI) int {
	messages, err := api.FetchLatestMessages(ctx, cfg.GroupID)
	if err != nil {
		logger.Error("fetch messages: " + err.Error())
		return 1
	}

	users := make([]domain.FabUser, 0, len(messages))
	for _, m := range messages {
		users = append(users, m.User)
	}
	if profMedia, err := profiles.ArchiveProfiles(ctx, users); err != nil {
		logger.Warn("profile sweep: " + err.Error())
	} else if len(profMedia) > 0 {
		logger.Info(fmt.Sprintf("Archived %d profile assets", len(profMedia)))
	}

	fresh := make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		seen, err := ledger.HasMessage(m.ID)
		if err != nil {
			logger.Error("ledger lookup: " + err.Error())
			return 1
		}
		if !seen {
			fresh = append(fresh, m)
		}
	}
	logger.Info(fmt.Sprintf("Fetched %d messages, %d new", len(messages), len(fresh)))
	if len(fresh) == 0 {
		return 0
	}

	jobs := cfg.Jobs
	if jobs > len(fresh) {
		jobs = len(fresh)
	}
	if jobs < 1 {
		jobs = 1
	}

	var (
		mu     sync.Mutex
		saved  int
		failed int
	)
	taskCh := make(chan domain.Message)
	var wg sync.WaitGroup
	for w := 0; w < jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range taskCh {
				artist := book.Name(m.UserID, m.User.EnName)
				label := fmt.Sprintf("%s %s #%d", book.Emoji(m.UserID), artist, m.ID)
				progress := cli.NewMediaProgress(label)

				outcome, err := processor.HandleMessage(ctx, m, progress.Update)
				progress.Stop()

				mu.Lock()
				if err != nil {
					failed++
					logger.Failure(fmt.Sprintf("%s: %s", label, err))
				} else {
					saved += len(outcome.Media)
					logger.Success(fmt.Sprintf("%s: %d media (%s)", label, len(outcome.Media), outcome.Result))
				}
				if err := ledger.UpsertArtist(m.UserID, artist, m.User.EnName); err != nil {
					logger.Warn("ledger artist: " + err.Error())
				}
				// Failed messages stay out of the ledger so the next poll
				// retries them; only settled outcomes are recorded.
				if err == nil {
					if err := ledger.SaveMessage(m, outcome.Result, outcome.Media); err != nil {
						logger.Warn("ledger save: " + err.Error())
					}
				}
				mu.Unlock()
			}
		}()
	}
	for _, m := range fresh {
		taskCh <- m
	}
	close(taskCh)
	wg.Wait()

	logger.Info(fmt.Sprintf("Completed. media=%d failed=%d", saved, failed))
	return failed
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := newLogger()
	code := execute(ctx, os.Args[1:], logger)
	stop()
	exitFn(code)
}
