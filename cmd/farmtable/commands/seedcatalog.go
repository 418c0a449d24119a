package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/54b3r/farmtable-go/internal/catalog"
	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/ingestion"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// defaultCatalogFile is the starter catalog shipped in configs/.
const defaultCatalogFile = "configs/catalog.yaml"

// catalogFile is the YAML layout of a catalog seed file.
type catalogFile struct {
	Producers []domain.ProducerInfo  `yaml:"producers"`
	Listings  []ingestion.NewListing `yaml:"listings"`
}

// catalogSeedResult is the JSON summary printed by seed-catalog.
type catalogSeedResult struct {
	Producers int `json:"producers"`
	Listings  int `json:"listings"`
	Failed    int `json:"failed"`
}

func readCatalogFile(path string) (*catalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cf.Producers) == 0 && len(cf.Listings) == 0 {
		return nil, fmt.Errorf("%s has no producers or listings", path)
	}
	return &cf, nil
}

// seedCatalog registers every producer, then creates every listing.
// Entries that fail validation are logged and counted; a failed producer
// makes its listings fail as unknown producers.
func seedCatalog(ctx context.Context, log *slog.Logger, p *ingestion.Pipeline, cf *catalogFile) catalogSeedResult {
	var res catalogSeedResult
	for _, in := range cf.Producers {
		if _, err := p.RegisterProducer(ctx, in); err != nil {
			res.Failed++
			log.Warn("catalog seed: producer skipped", slog.String("id", in.ID), slog.Any("error", err))
			continue
		}
		res.Producers++
	}
	for _, in := range cf.Listings {
		if _, err := p.Create(ctx, in); err != nil {
			res.Failed++
			log.Warn("catalog seed: listing skipped", slog.String("name", in.Name), slog.Any("error", err))
			continue
		}
		res.Listings++
	}
	return res
}

// seedMemoryCatalog loads CATALOG_SEED_FILE into a fresh in-memory catalog
// so listings can be created without an external database. The default
// file is optional; an explicitly named file must exist. "none" skips
// seeding.
func (a *app) seedMemoryCatalog(ctx context.Context, log *slog.Logger) error {
	if _, ok := a.catalog.(*catalog.MemoryRepository); !ok {
		return nil
	}
	path, explicit := os.LookupEnv("CATALOG_SEED_FILE")
	if !explicit || path == "" {
		path, explicit = defaultCatalogFile, false
	}
	if path == "none" {
		log.Info("catalog: seeding disabled via CATALOG_SEED_FILE=none")
		return nil
	}

	cf, err := readCatalogFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		log.Info("catalog: no seed file, starting empty", slog.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("catalog: seed: %w", err)
	}

	res := seedCatalog(logging.WithLogger(ctx, log), log, a.listings, cf)
	log.Info("catalog: in-memory catalog seeded",
		slog.String("path", path),
		slog.Int("producers", res.Producers),
		slog.Int("listings", res.Listings),
		slog.Int("failed", res.Failed),
	)
	return nil
}

// NewSeedCatalogCmd constructs the `farmtable seed-catalog` command.
func NewSeedCatalogCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Load producers and listings from a YAML file",
		Long: `Register the producers and create the listings in a YAML file. Producers
are upserted by ID, so re-running updates them; listings are always added
as new rows. Listings with thin descriptions get a generated one and every
listing is embedded when an embedding backend is configured.

The in-memory catalog loads CATALOG_SEED_FILE (default configs/catalog.yaml)
at startup, so this command is only useful with CATALOG_BACKEND=postgres.

Examples:
  CATALOG_BACKEND=postgres farmtable seed-catalog --file configs/catalog.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			cf, err := readCatalogFile(file)
			if err != nil {
				return fmt.Errorf("seed-catalog: %w", err)
			}

			// The in-memory catalog would be discarded on exit.
			if strings.ToLower(getEnvOrDefault("CATALOG_BACKEND", "memory")) == "memory" {
				return fmt.Errorf("seed-catalog: CATALOG_BACKEND=memory does not persist; set CATALOG_BACKEND=postgres")
			}

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("seed-catalog: %w", err)
			}
			defer a.Close()

			res := seedCatalog(ctx, log, a.listings, cf)
			log.Info("seed-catalog complete",
				slog.Int("producers", res.Producers),
				slog.Int("listings", res.Listings),
				slog.Int("failed", res.Failed),
			)
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", defaultCatalogFile, "YAML file of producers and listings")

	return cmd
}
