package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/pragma"
	"github.com/tsawler/pragma/internal/config"
	"github.com/tsawler/pragma/internal/export"
	"github.com/tsawler/pragma/internal/llm"
	"github.com/tsawler/pragma/internal/logging"
	"github.com/tsawler/pragma/internal/store"
)

// CompleterFactory builds the model client used by generate and classify.
type CompleterFactory func(cfg config.ProviderConfig) (pragma.Completer, error)

var newCompleter CompleterFactory = func(cfg config.ProviderConfig) (pragma.Completer, error) {
	return llm.New(cfg, nil)
}

var rootCmd = &cobra.Command{
	Use:           "pragma",
	Short:         "pragma - verb usage corpus builder",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate register/mood example sentences for target words",
	RunE:  runGenerate,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Tag, lemmatize and keep sentences using their target as a verb",
	RunE:  runAnnotate,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label retained sentences as literal or idiomatic",
	RunE:  runClassify,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract target verb sentences from textbook text",
	RunE:  runExtract,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus statistics and the usage summary",
	RunE:  runStats,
}

var occurrencesCmd = &cobra.Command{
	Use:   "occurrences <lemma>",
	Short: "List retained sentences containing a lemma",
	Args:  cobra.ExactArgs(1),
	RunE:  runOccurrences,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	RunE:  runRuns,
}

var (
	configFlag   string
	logLevelFlag string
	noStoreFlag  bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "config file (default ~/.pragma/config.yaml)")
	pf.StringVar(&logLevelFlag, "log-level", "", "override log level")
	pf.BoolVar(&noStoreFlag, "no-store", false, "do not archive the run")

	generateCmd.Flags().String("words", "data/target_words.txt", "target words, one per line")
	generateCmd.Flags().StringP("out", "o", "outputs/intermediate_sentences.json", "output JSON")

	annotateCmd.Flags().StringP("in", "i", "outputs/intermediate_sentences.json", "sentence records JSON")
	annotateCmd.Flags().StringP("out", "o", "outputs/filtered_sentences.json", "filtered records JSON")
	annotateCmd.Flags().String("stats", "", "also write statistics JSON here")

	classifyCmd.Flags().StringP("in", "i", "outputs/filtered_sentences.json", "filtered records JSON")
	classifyCmd.Flags().StringP("out", "o", "outputs/usage_classification.csv", "usage CSV")
	classifyCmd.Flags().Bool("raw", false, "input holds unfiltered sentence records")

	extractCmd.Flags().StringP("in", "i", "data/textbook_sentences.json", "textbook chunks JSON")
	extractCmd.Flags().StringP("out", "o", "outputs/textbook_analysis.json", "extracted rows JSON")
	extractCmd.Flags().String("csv", "outputs/textbook_analysis.csv", "extracted rows CSV")

	statsCmd.Flags().StringP("in", "i", "outputs/filtered_sentences.json", "filtered records JSON")
	statsCmd.Flags().String("usage", "", "usage CSV to summarize")

	occurrencesCmd.Flags().StringP("in", "i", "outputs/filtered_sentences.json", "filtered records JSON")
	occurrencesCmd.Flags().String("run", "", "read records from an archived annotate run")

	runsCmd.Flags().IntP("limit", "n", 20, "number of runs")

	rootCmd.AddCommand(generateCmd, annotateCmd, classifyCmd, extractCmd, statsCmd, occurrencesCmd, runsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads and validates the config and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newTagger(cfg *config.Config, model *pragma.Model) pragma.Tagger {
	if cfg.Analysis.Tagger == config.TaggerRule {
		return pragma.NewRuleTagger(nil, model)
	}
	return pragma.NewPerceptronTagger()
}

func newAnalyzer(cfg *config.Config, logger zerolog.Logger) (*pragma.Analyzer, error) {
	model, lex, err := cfg.LoadModel()
	if err != nil {
		return nil, err
	}
	return pragma.NewAnalyzer(
		pragma.UsingTagger(newTagger(cfg, model)),
		pragma.UsingLemmatizer(pragma.NewMorphLemmatizer(pragma.UsingModel(model), pragma.UsingLexicon(lex))),
		pragma.WithWindowSize(cfg.Analysis.Window),
		pragma.WithLogger(logger),
	), nil
}

func completer(cfg *config.Config) (pragma.Completer, error) {
	if err := cfg.RequireProvider(); err != nil {
		return nil, err
	}
	return newCompleter(cfg.Provider)
}

// archive opens the run store and records a new run. Archive failures are
// logged; they never fail the command.
func archive(cfg *config.Config, logger zerolog.Logger, command, input string) (*store.Store, string) {
	if noStoreFlag || cfg.Store.Path == "" {
		return nil, ""
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Store.Path).Msg("run archive unavailable")
		return nil, ""
	}
	run, err := st.CreateRun(command, input)
	if err != nil {
		logger.Warn().Err(err).Msg("run not archived")
		_ = st.Close()
		return nil, ""
	}
	return st, run.ID
}

func runGenerate(cmd *cobra.Command, args []string) error {
	wordsPath, _ := cmd.Flags().GetString("words")
	out, _ := cmd.Flags().GetString("out")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := completer(cfg)
	if err != nil {
		return err
	}

	f, err := os.Open(wordsPath)
	if err != nil {
		return fmt.Errorf("target words: %w", err)
	}
	words, err := pragma.ReadTargetWords(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return fmt.Errorf("target words: %s is empty", wordsPath)
	}

	g := pragma.NewGenerator(c, cfg.GeneratorConfig(), logger)
	records, report, runErr := g.Generate(cmd.Context(), words)
	if records == nil {
		records = []pragma.SentenceRecord{}
	}
	if err := export.WriteJSON(out, records); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d sentences generated (%d/%d words successful), saved to %s\n",
		report.Records, report.Succeeded, report.Words, out)
	return runErr
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	statsPath, _ := cmd.Flags().GetString("stats")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	records, err := export.ReadRecords(in)
	if err != nil {
		return err
	}
	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	filtered, report, runErr := a.Filter(cmd.Context(), records)
	if err := export.WriteJSON(out, filtered); err != nil {
		return err
	}
	stats := pragma.ComputeStatistics(filtered)
	if statsPath != "" {
		if err := export.WriteJSON(statsPath, stats); err != nil {
			return err
		}
	}

	if st, runID := archive(cfg, logger, "annotate", in); st != nil {
		if err := st.SaveAnnotations(runID, filtered); err != nil {
			logger.Warn().Err(err).Msg("annotations not archived")
		}
		_ = st.Close()
		logger.Info().Str("run", runID).Msg("run archived")
	}

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "%d of %d sentences use their target as a verb (%d rejected, %d skipped, %d failed), saved to %s\n",
		report.Retained, report.Total, report.Rejected, report.Skipped, report.Failed, out)
	printStatistics(stdout, stats)
	return runErr
}

func runClassify(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	raw, _ := cmd.Flags().GetBool("raw")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	var records []pragma.SentenceRecord
	if raw {
		records, err = export.ReadRecords(in)
	} else {
		var filtered []pragma.FilteredRecord
		filtered, err = export.ReadFiltered(in)
		for _, f := range filtered {
			records = append(records, f.Record())
		}
	}
	if err != nil {
		return err
	}

	c, err := completer(cfg)
	if err != nil {
		return err
	}
	v := pragma.NewBatchValidator(llm.NewClassifier(c), cfg.BatchConfig(), logger)
	rows, report, runErr := pragma.NewUsageRunner(v).Run(cmd.Context(), records)

	if err := export.WriteCSVFile(out, func(w io.Writer) error { return export.WriteUsageCSV(w, rows) }); err != nil {
		return err
	}
	if st, runID := archive(cfg, logger, "classify", in); st != nil {
		if err := st.SaveUsage(runID, rows); err != nil {
			logger.Warn().Err(err).Msg("usage not archived")
		}
		_ = st.Close()
	}

	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "%d sentences classified for %d lemmas in %d chunks (%d retried, %d marked ERROR), saved to %s\n",
		len(rows), report.Lemmas, report.Chunks, report.Retried, report.Degraded, out)
	printSummary(stdout, pragma.SummarizeUsage(rows))
	return runErr
}

func runExtract(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	csvPath, _ := cmd.Flags().GetString("csv")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	entries, err := export.ReadRecords(in)
	if err != nil {
		return err
	}
	seg, err := pragma.NewPunktSegmenter()
	if err != nil {
		return err
	}
	model, _, err := cfg.LoadModel()
	if err != nil {
		return err
	}

	e := pragma.NewExtractor(seg, newTagger(cfg, model),
		pragma.WithExtractorWindow(cfg.Analysis.Window),
		pragma.WithExtractorLogger(logger))
	rows, runErr := e.Extract(cmd.Context(), entries)

	if err := export.WriteJSON(out, rows); err != nil {
		return err
	}
	if csvPath != "" {
		if err := export.WriteCSVFile(csvPath, func(w io.Writer) error { return export.WriteExtractionCSV(w, rows) }); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d chunks into %d sentences, saved to %s\n", len(entries), len(rows), out)
	return runErr
}

func runStats(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	usagePath, _ := cmd.Flags().GetString("usage")

	if _, _, err := setup(cmd); err != nil {
		return err
	}
	filtered, err := export.ReadFiltered(in)
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()
	printStatistics(stdout, pragma.ComputeStatistics(filtered))

	if usagePath == "" {
		return nil
	}
	f, err := os.Open(usagePath)
	if err != nil {
		return fmt.Errorf("usage csv: %w", err)
	}
	defer f.Close()
	rows, err := export.ReadUsageCSV(f)
	if err != nil {
		return fmt.Errorf("usage csv: %w", err)
	}
	printSummary(stdout, pragma.SummarizeUsage(rows))
	return nil
}

func runOccurrences(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	runID, _ := cmd.Flags().GetString("run")

	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}

	var filtered []pragma.FilteredRecord
	if runID != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		filtered, err = st.Annotations(runID)
		if err != nil {
			return err
		}
	} else if filtered, err = export.ReadFiltered(in); err != nil {
		return err
	}

	occ := pragma.LemmaOccurrences(filtered, args[0])
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d sentences contain %q\n", len(occ), args[0])
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTOKEN\tPOS\tREGISTER\tMOOD\tCEFR\tSENTENCE")
	for _, o := range occ {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", o.Index, o.Token, o.Tag, o.Register, o.Mood, o.CEFRLevel, o.Sentence)
	}
	return tw.Flush()
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, _, err := setup(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Runs(limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMAND\tINPUT\tCREATED\tANNOTATIONS\tUSAGE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", r.ID, r.Command, r.Input, r.CreatedAt, r.Annotations, r.UsageRows)
	}
	return tw.Flush()
}

func printStatistics(w io.Writer, s pragma.CorpusStatistics) {
	fmt.Fprintf(w, "Sentences: %d\n", s.TotalSentences)
	fmt.Fprintf(w, "Tokens: %d (%.2f per sentence, sd %.2f)\n", s.TotalTokens, s.AvgTokensPerSentence, s.StdDevTokens)
	fmt.Fprintf(w, "Contractions: %d\n", s.TotalContractions)
	fmt.Fprintf(w, "Content token ratio: %.2f\n", s.ContentTokenRatio)
	fmt.Fprintf(w, "POS tags: %d unique\n", s.UniqueTags)
	for _, tc := range s.TopTags {
		fmt.Fprintf(w, "  %-6s %d\n", tc.Tag, tc.Count)
	}
	printCounts(w, "Register", s.RegisterFrequency)
	printCounts(w, "Mood", s.MoodFrequency)
	printCounts(w, "CEFR", s.CEFRFrequency)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	fmt.Fprintf(w, "%s: %s\n", title, strings.Join(parts, " "))
}

func printSummary(w io.Writer, s pragma.UsageSummary) {
	if len(s.Registers) == 0 {
		fmt.Fprintln(w, "No classified sentences.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "REGISTER\t%s\n", strings.Join(s.Categories, "\t"))
	for _, reg := range s.Registers {
		cells := make([]string, len(s.Categories))
		for i, cat := range s.Categories {
			cells[i] = fmt.Sprintf("%d (%.0f%%)", s.Counts[reg][cat], 100*s.Proportions[reg][cat])
		}
		fmt.Fprintf(tw, "%s\t%s\n", reg, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()

	data, err := json.MarshalIndent(s.IdiomaticRatio, "", "  ")
	if err == nil {
		fmt.Fprintf(w, "Idiomatic ratio by lemma and register:\n%s\n", data)
	}
}
