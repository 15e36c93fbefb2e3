package commands

import (
	"encoding/json"
	"log/slog"
	"os"

	"catalog-scraper/lib/configutil"
	"catalog-scraper/lib/scrapers/banner"
	"catalog-scraper/lib/subjectmap"

	"github.com/spf13/cobra"
)

var (
	scrapeProfiles  *string
	scrapeMappings  *string
	scrapeOut       *string
	scrapeAllTerms  *bool
	skipDescription *bool
	skipDetails     *bool
)

func init() {
	scrapeProfiles = scrapeCmd.Flags().String("profiles", "profiles.json5", "The school profiles to scrape.")
	scrapeMappings = scrapeCmd.Flags().String("mappings", "", "The subject mappings file. Defaults to the user data directory.")
	scrapeOut = scrapeCmd.Flags().String("out", "courses.json", "The file to write scraped calendars to.")
	scrapeAllTerms = scrapeCmd.Flags().Bool("all-terms", false, "Scrape every offered term instead of only the current one.")
	skipDescription = scrapeCmd.Flags().Bool("skip-descriptions", false, "Skip the per-course description fetch pass.")
	skipDetails = scrapeCmd.Flags().Bool("skip-details", false, "Skip the per-course seat count and requirement fetch pass.")
	rootCmd.AddCommand(scrapeCmd)
}

type schoolCatalog struct {
	School    string            `json:"School"`
	Calendars []banner.Calendar `json:"Calendars"`
}

// marshalCatalogs keeps the dump a bare calendar list when a single
// school was scraped, the shape the display frontend reads directly.
// Multi-school runs wrap each school's calendars in a named record.
func marshalCatalogs(catalogs []schoolCatalog) ([]byte, error) {
	if len(catalogs) == 1 {
		return json.MarshalIndent(catalogs[0].Calendars, "", "    ")
	}
	return json.MarshalIndent(catalogs, "", "    ")
}

func fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--profiles <profiles.json5>] [--out <courses.json>]",
	Short: "Scrapes every configured school's course catalog and writes a json dump.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		profiles, err := configutil.ReadConfig[[]banner.Profile](*scrapeProfiles)
		if err != nil {
			fatal("failed to read school profiles", err)
		}
		subjects, err := openSubjects(*scrapeMappings)
		if err != nil {
			fatal("failed to open subject mappings", err)
		}

		var catalogs []schoolCatalog
		for _, profile := range profiles {
			client, err := banner.NewClient(banner.ClientOptions{
				Profile:  profile,
				Subjects: subjects,
			})
			if err != nil {
				slog.Error("failed to initialize client", "school", profile.School, "err", err)
				continue
			}

			calendars, err := client.Terms(ctx)
			if err != nil {
				slog.Error("failed to list terms", "school", profile.School, "err", err)
				continue
			}
			if !*scrapeAllTerms && len(calendars) > 1 {
				calendars = calendars[:1]
			}

			scraper := banner.NewScraper(client, banner.ScraperOptions{
				FetchDescriptions: !*skipDescription,
				FetchDetails:      !*skipDetails,
			})
			catalogs = append(catalogs, schoolCatalog{
				School:    profile.School,
				Calendars: scraper.Scrape(ctx, calendars),
			})
		}

		contents, err := marshalCatalogs(catalogs)
		if err != nil {
			fatal("failed to marshal calendars", err)
		}
		err = os.WriteFile(*scrapeOut, contents, 0o644)
		if err != nil {
			fatal("failed to write output file", err)
		}
		slog.Info("wrote catalog dump", "file", *scrapeOut, "schools", len(catalogs))
	},
}

func openSubjects(path string) (*subjectmap.Store, error) {
	if path == "" {
		var err error
		path, err = subjectmap.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return subjectmap.Open(path)
}
