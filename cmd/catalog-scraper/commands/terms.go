package commands

import (
	"fmt"
	"log/slog"

	"catalog-scraper/lib/configutil"
	"catalog-scraper/lib/scrapers/banner"
	"catalog-scraper/lib/subjectmap"

	"github.com/spf13/cobra"
)

var termsProfiles *string

func init() {
	termsProfiles = termsCmd.Flags().String("profiles", "profiles.json5", "The school profiles to list terms for.")
	rootCmd.AddCommand(termsCmd)
}

var termsCmd = &cobra.Command{
	Use:   "terms [--profiles <profiles.json5>]",
	Short: "Lists the terms each configured school currently offers.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		profiles, err := configutil.ReadConfig[[]banner.Profile](*termsProfiles)
		if err != nil {
			fatal("failed to read school profiles", err)
		}
		mappingsPath, err := subjectmap.DefaultPath()
		if err != nil {
			fatal("failed to resolve subject mappings path", err)
		}
		subjects, err := subjectmap.Open(mappingsPath)
		if err != nil {
			fatal("failed to open subject mappings", err)
		}

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

			fmt.Println(profile.School)
			for _, cal := range calendars {
				fmt.Printf("    %s  %s\n", cal.ID, cal.Name)
			}
		}
	},
}
