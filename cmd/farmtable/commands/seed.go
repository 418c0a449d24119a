package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/knowledge"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// knowledgeFile is the YAML layout read by seed-knowledge.
type knowledgeFile struct {
	Entries []knowledge.NewEntry `yaml:"entries"`
}

// seedResult is the JSON summary printed by seed-knowledge.
type seedResult struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	IDs     []string `json:"ids"`
}

// NewSeedKnowledgeCmd constructs the `farmtable seed-knowledge` command.
func NewSeedKnowledgeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-knowledge",
		Short: "Load knowledge base entries from a YAML file",
		Long: `Embed and store the knowledge base entries listed in a YAML file. Each
entry has a title, content, category and optional tags. Entries that fail
validation or embedding are logged and skipped.

Examples:
  KNOWLEDGE_BACKEND=qdrant farmtable seed-knowledge --file configs/knowledge.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("seed-knowledge: %w", err)
			}
			var kf knowledgeFile
			if err := yaml.Unmarshal(data, &kf); err != nil {
				return fmt.Errorf("seed-knowledge: parse %s: %w", file, err)
			}
			if len(kf.Entries) == 0 {
				return fmt.Errorf("seed-knowledge: %s has no entries", file)
			}

			a, err := buildApp(ctx, log, observers{})
			if err != nil {
				return fmt.Errorf("seed-knowledge: %w", err)
			}
			defer a.Close()

			res := seedResult{IDs: []string{}}
			for _, in := range kf.Entries {
				var e *domain.KnowledgeEntry
				e, err = a.knowledge.Create(ctx, in)
				if err != nil {
					res.Failed++
					log.Warn("seed-knowledge: entry skipped", slog.String("title", in.Title), slog.Any("error", err))
					continue
				}
				res.Created++
				res.IDs = append(res.IDs, e.ID)
			}
			log.Info("seed-knowledge complete", slog.Int("created", res.Created), slog.Int("failed", res.Failed))
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "configs/knowledge.yaml", "YAML file of knowledge entries")

	return cmd
}
