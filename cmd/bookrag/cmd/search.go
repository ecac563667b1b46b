package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutorlib/bookrag/internal/config"
	"github.com/tutorlib/bookrag/internal/corpus"
	"github.com/tutorlib/bookrag/internal/embed"
	"github.com/tutorlib/bookrag/internal/index"
	"github.com/tutorlib/bookrag/internal/output"
	"github.com/tutorlib/bookrag/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK      int
	format    string // "text", "json"
	subject   string
	corpus    string
	window    int
	chunks    bool // expand hits with neighboring chunks
	noHyde    bool
	noRerank  bool
	noRewrite bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the textbook corpus",
		Long: `Search the textbook corpus using hybrid retrieval.

Combines BM25 (keyword) and semantic (embedding) search with Reciprocal
Rank Fusion, then filters and boosts candidates by query intent.

Examples:
  bookrag search "what is a deadlock?"
  bookrag search "tcp handshake" --top-k 3
  bookrag search "explain paging" --chunks --window 2
  bookrag search "acid properties" --format json --no-rerank`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatText, "Output format: text, json")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Restrict the corpus to one subject")
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "Path to the chunk corpus (JSONL)")
	cmd.Flags().IntVarP(&opts.window, "window", "w", 0, "Neighbor window for --chunks (default from config)")
	cmd.Flags().BoolVar(&opts.chunks, "chunks", false, "Expand hits with neighboring chunks for reading")
	cmd.Flags().BoolVar(&opts.noHyde, "no-hyde", false, "Skip hypothetical answer generation")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip cross-encoder reranking")
	cmd.Flags().BoolVar(&opts.noRewrite, "no-rewrite", false, "Skip query rewriting")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cfg, opts)

	slog.Info("search_started",
		slog.String("query", query),
		slog.Int("top_k", cfg.Search.TopK))
	out := output.New(cmd.OutOrStdout())
	// Status messages go to stderr so piped result output stays clean.
	errOut := output.New(cmd.ErrOrStderr())

	chunks, err := corpus.Load(cfg.Corpus.Path, cfg.Corpus.Subject)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("corpus %s has no chunks (subject %q)", cfg.Corpus.Path, cfg.Corpus.Subject)
	}
	slog.Debug("corpus_loaded",
		slog.String("path", cfg.Corpus.Path),
		slog.Int("chunks", len(chunks)))

	searcher, cleanup, err := buildSearcher(ctx, cfg, chunks, errOut)
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.chunks {
		expanded, err := searcher.SearchWithContext(ctx, query, cfg.Search.TopK, cfg.Search.ContextWindow)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		slog.Info("search_complete", slog.Int("chunks", len(expanded)))
		return out.Chunks(expanded, opts.format)
	}

	results, err := searcher.Search(ctx, query, cfg.Search.TopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete", slog.Int("results", len(results)))
	return out.Results(results, opts.format)
}

// applyFlags layers CLI flags over the loaded configuration.
func applyFlags(cfg *config.Config, opts searchOptions) {
	if opts.topK > 0 {
		cfg.Search.TopK = opts.topK
	}
	if opts.subject != "" {
		cfg.Corpus.Subject = opts.subject
	}
	if opts.corpus != "" {
		cfg.Corpus.Path = opts.corpus
	}
	if opts.window > 0 {
		cfg.Search.ContextWindow = opts.window
	}
	if opts.noHyde {
		cfg.Search.UseHyde = false
	}
	if opts.noRerank {
		cfg.Search.UseReranker = false
	}
	if opts.noRewrite {
		cfg.Search.UseQueryRewriting = false
	}
}

// buildSearcher wires the indices and optional services into a searcher.
// The returned cleanup closes the embedder and reranker.
func buildSearcher(ctx context.Context, cfg *config.Config, chunks []corpus.Chunk, errOut *output.Writer) (*search.HybridSearcher, func(), error) {
	ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:       cfg.Embedding.OllamaHost,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}
	embedder := embed.NewCachedEmbedder(ollama, embed.DefaultEmbeddingCacheSize)

	bm25, err := index.NewBM25Index(chunks)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, fmt.Errorf("build lexical index: %w", err)
	}

	dense, err := index.BuildDenseIndex(ctx, chunks, embedder, cfg.Embedding.CachePath)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, fmt.Errorf("build semantic index: %w", err)
	}

	searchOpts := []search.Option{search.WithContextExpansion(chunks)}

	if cfg.Search.UseHyde {
		searchOpts = append(searchOpts, search.WithHydeGenerator(search.NewHydeGenerator(search.HydeConfig{
			Host:        cfg.Embedding.OllamaHost,
			Model:       cfg.Hyde.Model,
			Timeout:     cfg.Hyde.TimeoutDuration(),
			MaxTokens:   cfg.Hyde.MaxTokens,
			Temperature: cfg.Hyde.Temperature,
		})))
	}

	var reranker search.Reranker
	if cfg.Search.UseReranker {
		reranker, err = search.NewCrossEncoderReranker(ctx, search.RerankerConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  cfg.Reranker.TimeoutDuration(),
			Alpha:    cfg.Search.RerankAlpha,
		})
		if err != nil {
			// Reranking is optional; retrieval still works without it.
			slog.Warn("reranker_unavailable", slog.String("error", err.Error()))
			errOut.Warning("reranker unavailable, continuing without reranking")
			cfg.Search.UseReranker = false
		} else {
			searchOpts = append(searchOpts, search.WithReranker(reranker))
		}
	}

	searcher, err := search.NewHybridSearcher(bm25, dense, search.Config{
		UseHyde:           cfg.Search.UseHyde,
		UseReranker:       cfg.Search.UseReranker,
		UseQueryRewriting: cfg.Search.UseQueryRewriting,
		TopK:              cfg.Search.TopK,
		CandidateK:        cfg.Search.CandidateK,
		RerankAlpha:       cfg.Search.RerankAlpha,
		RRFConstant:       cfg.Search.RRFConstant,
	}, searchOpts...)
	if err != nil {
		_ = embedder.Close()
		if reranker != nil {
			_ = reranker.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		_ = embedder.Close()
		if reranker != nil {
			_ = reranker.Close()
		}
	}
	return searcher, cleanup, nil
}
