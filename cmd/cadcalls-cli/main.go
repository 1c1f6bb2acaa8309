package main

import (
	"context"
	"log/slog"

	"github.com/jaisonv/cad-calls/cmd/cadcalls-cli/commands"
	"github.com/jaisonv/cad-calls/lib/telemetry"
)

func main() {
	ctx := context.Background()

	tel, err := telemetry.SetupFromEnv(ctx, "cadcalls-cli")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer tel.Shutdown(ctx)

	commands.ExecuteContext(ctx)
}
