package main

import (
	"context"
	"os"

	"catalog-scraper/cmd/catalog-scraper/commands"
	"catalog-scraper/lib/telemetry"
)

func main() {
	ctx := context.Background()
	tel, err := telemetry.SetupFromEnv(ctx, "catalog-scraper")
	if err == nil {
		defer tel.Shutdown(ctx)
	} else if !os.IsNotExist(err) {
		panic(err)
	}
	commands.ExecuteContext(ctx)
}
