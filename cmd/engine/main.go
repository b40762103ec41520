package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"inkwell/internal/services"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"

	"github.com/hiendaovinh/toolkit/pkg/env"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	vs, err := env.EnvsRequired(
		"CLAIM_SECRET",
		"DB_DSN",
	)
	if err != nil {
		log.Fatal(err)
	}

	container := NewContainer(vs)

	app := &cli.App{
		Name: "engine",
		Commands: []*cli.Command{
			commandDrain(container),
			commandDrainOnce(container),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// commandDrain runs the evaluation queue drain on a schedule until the
// process is signalled.
func commandDrain(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "drain",
		Usage: "drain the evaluation queue on a schedule",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			serviceEvaluation, err := do.Invoke[*services.ServiceEvaluation](container)
			if err != nil {
				return err
			}

			serviceConfig, err := do.Invoke[*services.ServiceConfig](container)
			if err != nil {
				return err
			}

			spec, _ := serviceConfig.GetStringConfig(ctx, services.CONFIG_EVAL_DRAIN_SPEC, services.DEFAULT_EVAL_DRAIN_SPEC)

			cronRunner := cron.New()
			_, err = cronRunner.AddFunc(spec, func() {
				n, err := serviceEvaluation.DrainBatch(context.Background())
				if err != nil {
					log.Println("drain batch:", err)
					return
				}
				if n > 0 {
					log.Println("drained events:", n)
				}
			})
			if err != nil {
				return err
			}

			log.Println("Start evaluation engine:", spec)
			cronRunner.Start()

			<-ctx.Done()
			<-cronRunner.Stop().Done()
			return nil
		},
	}
}

// commandDrainOnce drains a single batch and exits, for operators replaying
// a backlog by hand.
func commandDrainOnce(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "drain-once",
		Usage: "drain a single batch and exit",
		Action: func(c *cli.Context) error {
			serviceEvaluation, err := do.Invoke[*services.ServiceEvaluation](container)
			if err != nil {
				return err
			}

			n, err := serviceEvaluation.DrainBatch(context.Background())
			if err != nil {
				return err
			}

			log.Println("drained events:", n)
			return nil
		},
	}
}
