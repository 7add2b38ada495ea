package cli

import (
	"context"
	"log/slog"

	"github.com/ryohey/warp/internal/asset"
	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/compiler"
	"github.com/ryohey/warp/internal/config"
	"github.com/ryohey/warp/internal/engine"
	"github.com/ryohey/warp/internal/scene"
	"github.com/ryohey/warp/internal/store"
)

// LiveOptions are the flags shared by commands that drive a live session.
type LiveOptions struct {
	DB       string // pass log path, overrides db
	AssetDir string // overrides asset_dir
	AssetURL string // overrides asset_url

	// PassIDs overrides the pass id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	PassIDs engine.PassIDGenerator
}

// live bundles an in-memory scene, the session driving it and the
// collaborators the session was opened with.
type live struct {
	scene   *scene.Scene
	session *engine.Session
	store   *store.Store
	assets  *asset.Cache
}

// openLive builds the host, asset resolver, pass log and session described
// by cfg and lo. Failures are returned as stepErrors.
func openLive(ctx context.Context, cfg *config.Config, lo LiveOptions, hooks ...func(engine.PassResult)) (*live, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	l := &live{scene: scene.New(reg, scene.WithPositionalKind(cfg.PositionalKind))}

	sessionOpts := []engine.Option{engine.WithPositionalKind(cfg.PositionalKind)}

	resolver, err := assetResolver(cfg, lo)
	if err != nil {
		return nil, err
	}
	if resolver != nil {
		l.assets = asset.NewCache(resolver)
		sessionOpts = append(sessionOpts, engine.WithAssets(l.assets))
	}

	dbPath := cfg.DB
	if lo.DB != "" {
		dbPath = lo.DB
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, &stepError{code: ErrCodeStore, message: "open pass log " + dbPath, err: err}
		}
		last, err := st.LastSeq(ctx)
		if err != nil {
			st.Close()
			return nil, &stepError{code: ErrCodeStore, message: "read pass log " + dbPath, err: err}
		}
		l.store = st
		// Continue the logical clock so seq stays monotonic across runs.
		sessionOpts = append(sessionOpts, engine.WithRecorder(st), engine.WithClock(engine.NewClockAt(last)))
		slog.Info("pass log ready", "path", dbPath, "last_seq", last)
	}

	passIDs := lo.PassIDs
	if passIDs == nil {
		passIDs = engine.UUIDv7Generator{}
	}
	sessionOpts = append(sessionOpts, engine.WithPassIDs(passIDs))
	for _, hook := range hooks {
		sessionOpts = append(sessionOpts, engine.WithPassHook(hook))
	}

	l.session = engine.Open(l.scene, sessionOpts...)
	return l, nil
}

// Close closes the session and the pass log.
func (l *live) Close() {
	l.session.Close()
	if l.assets != nil {
		hits, misses := l.assets.Stats()
		slog.Debug("asset cache", "hits", hits, "misses", misses)
	}
	if l.store != nil {
		if err := l.store.Close(); err != nil {
			slog.Error("error closing pass log", "error", err)
		}
	}
}

func loadRegistry(cfg *config.Config) (*coerce.Registry, error) {
	if cfg.Registry == "" {
		reg, err := scene.DefaultRegistry()
		if err != nil {
			return nil, &stepError{code: ErrCodeRegistry, message: "built-in field registry", err: err}
		}
		return reg, nil
	}
	reg, err := compiler.LoadRegistryFile(cfg.Registry)
	if err != nil {
		return nil, &stepError{code: ErrCodeRegistry, message: "load field registry " + cfg.Registry, err: err}
	}
	return reg, nil
}

// assetResolver returns the configured store, or nil when none is set.
func assetResolver(cfg *config.Config, lo LiveOptions) (coerce.AssetResolver, error) {
	dir, url := cfg.AssetDir, cfg.AssetURL
	if lo.AssetDir != "" {
		dir, url = lo.AssetDir, ""
	}
	if lo.AssetURL != "" {
		dir, url = "", lo.AssetURL
	}

	switch {
	case dir != "":
		return asset.NewDirStore(dir), nil
	case url != "":
		var opts []asset.HTTPOption
		if cfg.AssetRateLimit > 0 {
			opts = append(opts, asset.WithRateLimit(cfg.AssetRateLimit, 1))
		}
		s, err := asset.NewHTTPStore(url, opts...)
		if err != nil {
			return nil, &stepError{code: ErrCodeAssets, message: "asset store", err: err}
		}
		return s, nil
	}
	return nil, nil
}
