package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/app"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/config"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/repository/pdftext"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/ingest"
)

var (
	indexNamespace    string
	indexName         string
	indexChunkSize    int
	indexChunkOverlap int
	indexBatchSize    int
)

var indexCmd = &cobra.Command{
	Use:   "index <pdf>...",
	Short: "Chunk, embed and upsert PDF papers",
	Long: `Extract the text of each PDF, split it into overlapping chunks, embed them and
upsert them into the vector index. Chunk IDs are "<filename>-chunk-<i>", so
re-indexing a file overwrites its previous chunks.

Examples:
  ragctl index 1736171_Boukhris,O_2024.pdf
  ragctl index papers/*.pdf --namespace research-papers --index female-athlete-index`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexNamespace, "namespace", config.DefaultNamespace, "target namespace")
	indexCmd.Flags().StringVar(&indexName, "index", "", "target index (default: vector_index.name)")
	indexCmd.Flags().IntVar(&indexChunkSize, "chunk-size", ingest.DefaultChunkSize, "max characters per chunk")
	indexCmd.Flags().IntVar(&indexChunkOverlap, "chunk-overlap", ingest.DefaultChunkOverlap, "characters shared by neighbouring chunks")
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", ingest.DefaultBatchSize, "chunks per embed and upsert call")
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := requireIndex(); err != nil {
		return err
	}
	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("missing configuration: openai.api_key")
	}

	name := indexName
	if name == "" {
		name = cfg.VectorIndex.Name
	}

	svc, err := ingest.New(
		app.NewEmbedder(cfg, cfg.OpenAI.EmbeddingModel, nil, logger),
		app.NewIndexClient(cfg, name, logger),
		ingest.Options{ChunkSize: indexChunkSize, ChunkOverlap: indexChunkOverlap, BatchSize: indexBatchSize},
		logger,
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range args {
		fmt.Fprintf(out, "Reading %s...\n", path)
		text, err := pdftext.Read(path)
		if err != nil {
			return err
		}

		res, err := svc.Index(cmd.Context(), ingest.Document{Filename: path, Text: text}, indexNamespace)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Indexed %s: %d chunks, %d vectors upserted into %s/%s (%d tokens)\n",
			filepath.Base(path), res.Chunks, res.Upserted, name, indexNamespace, res.Tokens)
	}
	return nil
}
