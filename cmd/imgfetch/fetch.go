package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgfetch/pkg/config"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/scraper"
	"imgfetch/pkg/search"
)

var (
	fetchLimit      int
	fetchOutput     string
	fetchConcurrent int
	fetchRateLimit  int
	fetchRetries    int
	fetchTimeout    int
	fetchOverwrite  bool
	fetchNoFolders  bool
	fetchJSON       bool

	filterColor     string
	filterColorType string
	filterSize      string
	filterType      string
	filterTime      string
	filterFormat    string
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch <query>",
	Short: "Search for images and download the results",
	Long: `Search for images matching the query and download them concurrently.

Downloads go to a folder named after the query inside the output
directory. Files that already exist are skipped unless --overwrite is
given. Failed downloads are reported but do not abort the run.`,
	Example: `  # Download up to 20 results for a query
  imgfetch fetch "northern lights" --limit 20

  # Large red photos only, to a custom directory
  imgfetch fetch roses --color red --size large --type photo --output ./pics

  # Machine-readable per-file results
  imgfetch fetch sunsets --limit 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVarP(&fetchLimit, "limit", "l", 100, "maximum number of images to download")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output directory for downloads")
	fetchCmd.Flags().IntVar(&fetchConcurrent, "concurrent", 3, "number of concurrent downloads")
	fetchCmd.Flags().IntVar(&fetchRateLimit, "rate-limit", 60, "requests per minute")
	fetchCmd.Flags().IntVar(&fetchRetries, "max-retries", 3, "maximum number of retry attempts per request")
	fetchCmd.Flags().IntVar(&fetchTimeout, "timeout", 30, "download timeout in seconds")
	fetchCmd.Flags().BoolVar(&fetchOverwrite, "overwrite", false, "overwrite existing files")
	fetchCmd.Flags().BoolVar(&fetchNoFolders, "no-folders", false, "download directly into the output directory")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print per-file results as JSON")

	fetchCmd.Flags().StringVar(&filterColor, "color", "", "filter by color (red, blue, green, ...)")
	fetchCmd.Flags().StringVar(&filterColorType, "color-type", "", "filter by color type (full-color, black-and-white, transparent)")
	fetchCmd.Flags().StringVar(&filterSize, "size", "", "filter by size (large, medium, icon, >640*480, ...)")
	fetchCmd.Flags().StringVar(&filterType, "type", "", "filter by type (face, photo, clipart, line-drawing, animated)")
	fetchCmd.Flags().StringVar(&filterTime, "time", "", "filter by time (past-24-hours, past-7-days)")
	fetchCmd.Flags().StringVar(&filterFormat, "format", "", "filter by format (jpg, png, gif, bmp, svg, webp, ico)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])

	flags := globalFlags()
	if fetchOutput != "" {
		flags["output"] = fetchOutput
	}
	if cmd.Flags().Changed("concurrent") {
		flags["concurrent"] = fetchConcurrent
	}
	if cmd.Flags().Changed("rate-limit") {
		flags["rate-limit"] = fetchRateLimit
	}
	if cmd.Flags().Changed("max-retries") {
		flags["max-retries"] = fetchRetries
	}
	if cmd.Flags().Changed("timeout") {
		flags["timeout"] = fetchTimeout
	}
	if cmd.Flags().Changed("overwrite") {
		flags["overwrite"] = fetchOverwrite
	}
	if fetchNoFolders {
		flags["query-folders"] = false
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	engine, err := scraper.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	summary, err := engine.Run(query, fetchLimit, buildFilters())
	if err != nil {
		logger.WithError(err).WithField("query", query).Error("Fetch failed")
		return err
	}

	if fetchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	if summary.Total == 0 {
		fmt.Printf("No images found for %q\n", query)
		return nil
	}

	for _, res := range summary.Results {
		switch res.Status {
		case "ok":
			fmt.Printf("  downloaded  %s (%d bytes)\n", res.Path, res.Bytes)
		case "skipped":
			fmt.Printf("  skipped     %s (already exists)\n", res.Path)
		default:
			fmt.Printf("  failed      %s: %s\n", res.URL, res.Error)
		}
	}
	fmt.Printf("\n%d downloaded, %d skipped, %d failed in %s\n",
		summary.Downloaded, summary.Skipped, summary.Failed, summary.Elapsed.Round(time.Millisecond))
	return nil
}

// buildFilters maps the filter flags onto a search filter set.
func buildFilters() *search.Filters {
	if filterColor == "" && filterColorType == "" && filterSize == "" &&
		filterType == "" && filterTime == "" && filterFormat == "" {
		return nil
	}
	return &search.Filters{
		Color:     filterColor,
		ColorType: filterColorType,
		Size:      filterSize,
		Type:      filterType,
		Time:      filterTime,
		Format:    filterFormat,
	}
}
