package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/verdantic/fieldsat/internal/store"
)

// initStore opens the SQLite run store at the configured path and applies
// migrations. Commands that cannot work without persistence call this and
// surface the error; the match command treats a disabled store as a
// run-without-saving request instead.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.Disable {
		return nil, eris.New("store is disabled (store.disable); this command needs it")
	}

	path := cfg.Store.Path
	if path == "" {
		path = "fieldsat.db"
	}

	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
