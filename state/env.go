// Package state defines shared program state.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	epub "github.com/simp-lee/epubview"
	"github.com/simp-lee/epubview/cache"
	"github.com/simp-lee/epubview/config"
	"github.com/simp-lee/epubview/heal"
	"github.com/simp-lee/epubview/library"
	"github.com/simp-lee/epubview/render"
	"github.com/simp-lee/epubview/store"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Log *zap.Logger

	// closes the log file, set together with Log
	CloseLog func() error

	store   *store.SQLite
	library *library.Service

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &LocalEnv{start: time.Now()})
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// Library opens the book database on first use and returns the service
// over it, wired according to Cfg.
func (e *LocalEnv) Library() (*library.Service, error) {
	if e.library != nil {
		return e.library, nil
	}
	if e.Cfg == nil {
		return nil, errors.New("configuration is not loaded")
	}
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	db, err := store.Open(e.Cfg.Library.Database)
	if err != nil {
		return nil, fmt.Errorf("unable to open library database: %w", err)
	}
	e.store = db

	cfg := e.Cfg
	c := cache.New(time.Duration(cfg.Cache.TTL), time.Duration(cfg.Cache.CleanupInterval), log)
	r := render.New(render.Options{
		HighlightScript: cfg.Render.HighlightScript,
		BookStyles:      cfg.Render.BookStyles,
	}, log)
	parser := epub.Parser{Log: log}

	e.library = library.New(db, c, r,
		library.WithLogger(log),
		library.WithHealer(heal.NewHealer(parser, db, log)),
		library.WithAutoHeal(cfg.Library.AutoHeal),
		library.WithImporter(parser),
		library.WithDefaultStyle(cfg.Render.Style),
		library.WithContextLength(cfg.Search.ContextLength),
		library.WithPrewarmWorkers(cfg.Library.PrewarmWorkers),
	)
	log.Debug("Library opened", zap.String("database", cfg.Library.Database))
	return e.library, nil
}

// Close releases the library database and the log file.
func (e *LocalEnv) Close() (err error) {
	if e.store != nil {
		if er := e.store.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close library database: %w", er))
		}
		e.store, e.library = nil, nil
	}
	if e.CloseLog != nil {
		if er := e.CloseLog(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close log file: %w", er))
		}
		e.CloseLog = nil
	}
	return err
}
