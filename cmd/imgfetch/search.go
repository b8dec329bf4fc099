package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"imgfetch/pkg/config"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/scraper"
)

var (
	searchLimit int
	searchJSON  bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "List image URLs for a query without downloading",
	Long: `Search for images matching the query and print the result URLs.

Nothing is downloaded. Use --json to get the full metadata for each
result, including title, dimensions and source page.`,
	Example: `  # List up to 10 result URLs
  imgfetch search "mountain lake" --limit 10

  # Full metadata as JSON
  imgfetch search "mountain lake" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 100, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")

	searchCmd.Flags().StringVar(&filterColor, "color", "", "filter by color (red, blue, green, ...)")
	searchCmd.Flags().StringVar(&filterColorType, "color-type", "", "filter by color type (full-color, black-and-white, transparent)")
	searchCmd.Flags().StringVar(&filterSize, "size", "", "filter by size (large, medium, icon, >640*480, ...)")
	searchCmd.Flags().StringVar(&filterType, "type", "", "filter by type (face, photo, clipart, line-drawing, animated)")
	searchCmd.Flags().StringVar(&filterTime, "time", "", "filter by time (past-24-hours, past-7-days)")
	searchCmd.Flags().StringVar(&filterFormat, "format", "", "filter by format (jpg, png, gif, bmp, svg, webp, ico)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])

	cfg, err := config.Load(configFile, globalFlags())
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

	images, err := engine.Search(query, searchLimit, buildFilters())
	if err != nil {
		return err
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(images)
	}

	if len(images) == 0 {
		fmt.Printf("No images found for %q\n", query)
		return nil
	}
	for _, img := range images {
		fmt.Println(img.URL)
	}
	return nil
}
