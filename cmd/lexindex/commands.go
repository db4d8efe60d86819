package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/japaniel/lexindex/pkg/analytics"
	"github.com/japaniel/lexindex/pkg/db"
	"github.com/japaniel/lexindex/pkg/extract"
	"github.com/japaniel/lexindex/pkg/ingest"
	"github.com/japaniel/lexindex/pkg/personal"
	"github.com/japaniel/lexindex/pkg/wordlist"
)

func (a *app) importDictCmd() *cobra.Command {
	var maxWords int
	cmd := &cobra.Command{
		Use:   "import-dict <ranked.csv>",
		Short: "Import a ranked frequency list into the reference dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-words") {
				eng.Config.Import.MaxWords = maxWords
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			res, err := eng.ImportDictionary(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVar(&maxWords, "max-words", 0, "import at most this many rows (0 = all)")
	return cmd
}

func (a *app) remediateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remediate",
		Short: "Re-match unmatched and not found words against the dictionary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Matcher.Remediate(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

// ingestItem is the printable form of an ingest.IngestResult.
type ingestItem struct {
	Source string `json:"source"`
	ingest.IngestResult
	Error string `json:"error,omitempty"`
}

func (a *app) ingestCmd() *cobra.Command {
	var (
		urls      []string
		docType   string
		reprocess bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest text or HTML files and web pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(urls) == 0 {
				return fmt.Errorf("give at least one file or --url")
			}
			t := db.DocumentType(docType)
			if t != db.DocumentText && t != db.DocumentVocabularyList {
				return fmt.Errorf("unknown document type %q", docType)
			}
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			eng.Ingester.Reprocess = reprocess
			ctx := cmd.Context()

			var items []ingestItem
			results, err := eng.IngestFiles(ctx, args, t)
			for i, r := range results {
				items = append(items, newIngestItem(args[i], r))
			}
			if err != nil {
				return err
			}
			for _, u := range urls {
				c, err := extract.Fetch(ctx, nil, u)
				if err != nil {
					items = append(items, newIngestItem(u, ingest.IngestResult{Err: err}))
					continue
				}
				r, _ := eng.Ingester.IngestText(ctx, ingest.Source{Content: c, Type: t})
				items = append(items, newIngestItem(u, r))
			}
			return printJSON(cmd, items)
		},
	}
	cmd.Flags().StringSliceVar(&urls, "url", nil, "web page to fetch and ingest (repeatable)")
	cmd.Flags().StringVar(&docType, "type", string(db.DocumentText), "document type: text or vocabulary_list")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "re-record documents that are already completed")
	return cmd
}

func newIngestItem(source string, r ingest.IngestResult) ingestItem {
	item := ingestItem{Source: source, IngestResult: r}
	if r.Err != nil {
		item.Error = r.Err.Error()
	}
	return item
}

func (a *app) documentsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			docs, err := eng.Documents(cmd.Context(), db.DocumentStatus(status))
			if err != nil {
				return err
			}
			return printJSON(cmd, docs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only documents in this status")
	return cmd
}

func (a *app) purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <document-id>",
		Short: "Delete a document and its occurrences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			deleted, err := eng.Purge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"document_id": args[0], "deleted": deleted})
		},
	}
}

func (a *app) wordlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordlist",
		Short: "Manage wordlists",
	}

	var file string
	add := &cobra.Command{
		Use:   "add <name> [words...]",
		Short: "Add words to a wordlist, creating it when missing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			words := args[1:]
			var skipped []wordlist.Rejection
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				parsed, err := eng.Wordlists.ParseFile(f)
				f.Close()
				if err != nil {
					return err
				}
				words = append(words, parsed.Words...)
				skipped = parsed.Skipped
			}
			res, err := eng.Wordlists.AddWords(cmd.Context(), args[0], words)
			if err != nil {
				return err
			}
			res.Rejected = append(skipped, res.Rejected...)
			return printJSON(cmd, res)
		},
	}
	add.Flags().StringVar(&file, "file", "", "read words from a wordlist file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List wordlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			lists, err := eng.Wordlists.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, lists)
		},
	}

	members := &cobra.Command{
		Use:   "members <name>",
		Short: "List the dictionary entries of a wordlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			m, err := eng.Wordlists.Members(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, m)
		},
	}

	cmd.AddCommand(add, list, members)
	return cmd
}

func (a *app) coverageCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "coverage <document-id>",
		Short: "Wordlist coverage of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			if name != "" {
				res, err := eng.Analytics.Coverage(cmd.Context(), args[0], name)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}
			res, err := eng.Analytics.CoverageAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&name, "wordlist", "", "only this wordlist (default every wordlist)")
	return cmd
}

func (a *app) similarityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <document-a> <document-b>",
		Short: "Jaccard and cosine similarity of two documents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Analytics.Similarity(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (a *app) variantsCmd() *cobra.Command {
	var doc string
	cmd := &cobra.Command{
		Use:   "variants <word>",
		Short: "Observed spellings collapsed onto a word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Analytics.Variants(cmd.Context(), args[0], doc)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&doc, "document", "", "limit frequencies to one document")
	return cmd
}

func (a *app) lemmasCmd() *cobra.Command {
	var doc string
	cmd := &cobra.Command{
		Use:   "lemmas",
		Short: "Variant and frequency statistics per lemma",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Analytics.LemmaStats(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&doc, "document", "", "limit to one document")
	return cmd
}

func (a *app) difficultyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "difficulty <document-id>",
		Short: "Personal difficulty score and recommended words of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Analytics.Difficulty(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Manage personal learning status",
	}

	var (
		notes    string
		noCreate bool
	)
	set := &cobra.Command{
		Use:   "set <word> <new|learn|know|master>",
		Short: "Set the status of a word",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := personal.ParseStatus(args[1])
			if err != nil {
				return err
			}
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Personal.SetStatus(cmd.Context(), args[0], st, !noCreate)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("notes") {
				if err := eng.Personal.SetNotes(cmd.Context(), args[0], notes); err != nil {
					return err
				}
			}
			return printJSON(cmd, res)
		},
	}
	set.Flags().StringVar(&notes, "notes", "", "personal notes for the word")
	set.Flags().BoolVar(&noCreate, "no-create", false, "fail instead of creating an unseen word")

	var format string
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Import statuses from csv, txt or json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			fm := personal.Format(format)
			if fm == "" {
				fm = personal.FormatFromPath(args[0])
			}
			res, err := eng.Personal.Import(cmd.Context(), f, fm)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	imp.Flags().StringVar(&format, "format", "", "csv, txt or json (default from extension)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Status distribution and learning progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			res, err := eng.Personal.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list <status>",
		Short: "Words in a status, most common first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := personal.ParseStatus(args[0])
			if err != nil {
				return err
			}
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			words, err := eng.Personal.WordsByStatus(cmd.Context(), st, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, words)
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "at most this many words (0 = all)")

	cmd.AddCommand(set, imp, stats, list)
	return cmd
}

// statsOutput combines store and part of speech statistics.
type statsOutput struct {
	analytics.DatabaseStats
	POS analytics.POSDistribution `json:"pos_distribution"`
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Database, dictionary and part of speech statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.open(cmd)
			if err != nil {
				return err
			}
			st, err := eng.Analytics.DatabaseStats(cmd.Context())
			if err != nil {
				return err
			}
			pos, err := eng.Analytics.POSDistribution(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, statsOutput{DatabaseStats: st, POS: pos})
		},
	}
}
