package cmd

import (
	"context"
	"fmt"

	"github.com/opd-ai/storybook/history"
	storybook "github.com/opd-ai/storybook/src"
)

// app holds everything a command needs, built from settings and flags.
type app struct {
	settings *storybook.Settings
	catalog  *storybook.Catalog
	client   *storybook.Client
}

func loadApp(flags *rootFlags) (*app, error) {
	settings, err := storybook.LoadSettings()
	if err != nil {
		return nil, err
	}
	if flags.catalog != "" {
		settings.CatalogPath = flags.catalog
	}
	if flags.output != "" {
		settings.OutputDir = flags.output
	}

	catalog, err := storybook.LoadCatalog(settings.CatalogPath)
	if err != nil {
		return nil, err
	}
	client := storybook.NewClient(storybook.Options{
		APIKey:          settings.APIKey,
		BaseURL:         settings.BaseURL,
		RequestTimeout:  settings.RequestTimeout,
		DownloadTimeout: settings.DownloadTimeout,
	})
	return &app{settings: settings, catalog: catalog, client: client}, nil
}

// generator wires the Leonardo client, poller and history into a Generator.
func (a *app) generator(ctx context.Context) (*storybook.Generator, error) {
	store, err := history.Open(ctx, a.settings.RedisAddr, a.settings.RedisPassword, a.settings.RedisDB, a.settings.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storybook.ErrConnectivity, err)
	}
	poller := storybook.NewPoller(a.client, a.settings.PollInterval, a.settings.PollTimeout)
	gen := storybook.NewGenerator(a.catalog, a.client, poller, a.settings.OutputDir)
	gen.KeepImages = a.settings.KeepImages
	gen.NumImages = a.settings.NumImages
	gen.History = store
	return gen, nil
}
