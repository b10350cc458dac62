package main

import (
	"context"
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"campaign-settlement/internal/httpapi"
	asynqmod "campaign-settlement/pkg/asynq"
	"campaign-settlement/pkg/config"
	"campaign-settlement/pkg/db"
	"campaign-settlement/pkg/health"
	"campaign-settlement/pkg/logger"
	"campaign-settlement/pkg/otelcol"
	"campaign-settlement/pkg/otelcol/exporters"
	"campaign-settlement/pkg/redis"
	"campaign-settlement/pkg/server"
	"campaign-settlement/services/oracle"
	"campaign-settlement/services/payout"
	"campaign-settlement/services/reward"
	"campaign-settlement/services/settlement"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		asynqmod.Client,
		asynqmod.Server,
		health.Module,
		fx.Provide(
			provideSnowflakeNode,
		),
		oracle.Module,
		reward.Module,
		payout.Module,
		settlement.Module,
		settlement.TaskModule,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Invoke(
			registerTelemetry,
			db.Otel,
			db.Metric,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func registerTelemetry(lc fx.Lifecycle) error {
	exporter, err := exporters.ProvideHttp()
	if err != nil {
		return err
	}

	tp := otelcol.ProvideTrace(exporter)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return nil
}
