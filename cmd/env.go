package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agroprophet/agroprophet/internal/forecast"
	"github.com/agroprophet/agroprophet/internal/model"
	"github.com/agroprophet/agroprophet/internal/store"
)

// openStore opens the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// loadCatalog returns the crop catalog, from file when configured.
func loadCatalog() (*model.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return model.DefaultCatalog(), nil
	}
	catalog, err := model.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load crop catalog")
	}
	zap.L().Info("crop catalog loaded", zap.String("path", cfg.Catalog.Path))
	return catalog, nil
}

func openArtifacts() (*forecast.ArtifactStore, error) {
	artifacts, err := forecast.NewArtifactStore(cfg.Models.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open artifact store")
	}
	return artifacts, nil
}
