package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l10nledger/ledger/pkg/apperrors"
	"github.com/l10nledger/ledger/pkg/metrics"
	"github.com/l10nledger/ledger/pkg/models"
	"github.com/l10nledger/ledger/pkg/repositories"
	"github.com/l10nledger/ledger/pkg/retry"
)

const (
	keysFileName       = "keys.txt"
	defaultConcurrency = 8
	maxLineBytes       = 1 << 20
)

var langFilePattern = regexp.MustCompile(`^[a-zA-Z_-]+\.txt$`)

// SyncService imports a localization folder into the translation store.
type SyncService interface {
	// SyncFolder appends every language file under root as new versions and
	// refreshes the latest translation index once at the end. A failing file
	// does not stop the others; all file errors are joined in the result.
	SyncFolder(ctx context.Context, root string) (*SyncResult, error)
}

// SyncResult summarizes one folder sync.
type SyncResult struct {
	Folders  int `json:"folders"`
	Files    int `json:"files"`
	Failed   int `json:"failed"`
	Versions int `json:"versions"`
	Created  int `json:"created"`
}

// SyncServiceDeps contains dependencies for SyncService.
type SyncServiceDeps struct {
	Translations repositories.TranslationRepository
	Refresher    RefreshService
	Concurrency  int           // Optional: defaults to 8
	Retry        *retry.Config // Optional: defaults to retry.DefaultConfig()
	Logger       *zap.Logger
}

type syncService struct {
	translations repositories.TranslationRepository
	refresher    RefreshService
	concurrency  int
	retryCfg     *retry.Config
	logger       *zap.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(deps *SyncServiceDeps) SyncService {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	retryCfg := deps.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &syncService{
		translations: deps.Translations,
		refresher:    deps.Refresher,
		concurrency:  concurrency,
		retryCfg:     retryCfg,
		logger:       logger.Named("sync"),
	}
}

var _ SyncService = (*syncService)(nil)

// langFile is one <lang>.txt next to a keys.txt.
type langFile struct {
	folder   string // string_file
	path     string
	langCode string
	keys     []string
}

func (s *syncService) SyncFolder(ctx context.Context, root string) (*SyncResult, error) {
	started := time.Now()
	s.logger.Info("Syncing localization folder", zap.String("root", root))

	files, folders, err := s.discover(ctx, root)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Folders: folders, Files: len(files)}
	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			versions, created, err := s.syncFile(gctx, f)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.SyncedFiles.WithLabelValues(metrics.ResultError).Inc()
				s.logger.Error("Failed to sync language file",
					zap.String("path", f.path),
					zap.Error(err))
				result.Failed++
				failures = append(failures, fmt.Errorf("%s: %w", f.path, err))
				return nil
			}
			metrics.SyncedFiles.WithLabelValues(metrics.ResultOK).Inc()
			metrics.AppendedVersions.WithLabelValues("created").Add(float64(created))
			metrics.AppendedVersions.WithLabelValues("existing").Add(float64(versions - created))
			result.Versions += versions
			result.Created += created
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	if result.Files > result.Failed && s.refresher != nil {
		if err := s.refresher.RefreshTranslations(ctx); err != nil {
			return result, fmt.Errorf("failed to refresh after sync: %w", err)
		}
	}

	s.logger.Info("Synced localization folder",
		zap.String("root", root),
		zap.Int("folders", result.Folders),
		zap.Int("files", result.Files),
		zap.Int("failed", result.Failed),
		zap.Int("created", result.Created),
		zap.Duration("elapsed", time.Since(started)))

	return result, errors.Join(failures...)
}

// discover walks root for keys.txt files and returns the language files
// beside them, in a stable order.
func (s *syncService) discover(ctx context.Context, root string) ([]langFile, int, error) {
	var files []langFile
	folders := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(d.Name(), keysFileName) {
			return nil
		}

		dir := filepath.Dir(path)
		keys, err := readLines(path)
		if err != nil {
			return fmt.Errorf("failed to read keys: %w", err)
		}
		folders++

		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}
		langs := 0
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || strings.EqualFold(name, keysFileName) || !langFilePattern.MatchString(name) {
				continue
			}
			files = append(files, langFile{
				folder:   filepath.Base(dir),
				path:     filepath.Join(dir, name),
				langCode: strings.TrimSuffix(name, filepath.Ext(name)),
				keys:     keys,
			})
			langs++
		}

		s.logger.Debug("Found key file",
			zap.String("path", path),
			zap.Int("keys", len(keys)),
			zap.Int("languages", langs))
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, folders, nil
}

func (s *syncService) syncFile(ctx context.Context, f langFile) (int, int, error) {
	lines, err := readLines(f.path)
	if err != nil {
		return 0, 0, err
	}
	if len(lines) != len(f.keys) {
		return 0, 0, fmt.Errorf("%w: number of lines (%d) doesn't match number of keys (%d)",
			apperrors.ErrInvalidInput, len(lines), len(f.keys))
	}

	// Each attempt gets fresh versions: a failed attempt must not pin the
	// added_at of the next one.
	var stored, created int
	err = retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		versions := f.versions(lines)
		stored = len(versions)
		var err error
		created, err = s.translations.AppendBatch(ctx, versions)
		return err
	})
	if err != nil {
		return 0, 0, err
	}

	s.logger.Debug("Stored language file",
		zap.String("string_file", f.folder),
		zap.String("lang_code", f.langCode),
		zap.Int("lines", len(lines)),
		zap.Int("stored", stored),
		zap.Int("created", created))
	return stored, created, nil
}

// versions pairs each line with its key. Blank keys are skipped.
func (f langFile) versions(lines []string) []*models.TranslationVersion {
	versions := make([]*models.TranslationVersion, 0, len(lines))
	for i, body := range lines {
		if f.keys[i] == "" {
			continue
		}
		versions = append(versions, &models.TranslationVersion{
			StringFile: f.folder,
			StringKey:  f.keys[i],
			LangCode:   f.langCode,
			Body:       body,
		})
	}
	return versions
}

// readLines returns the file's lines with surrounding whitespace trimmed.
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
