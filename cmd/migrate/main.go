package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"

	"inkwell/internal/datastore"
	"inkwell/internal/models"
	"inkwell/internal/services"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"
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
	app := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
			commandConfigMigration(),
			commandSeedBadges(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name: "migrate",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableUser(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableBadge(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableBadgeClaim(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableBlog(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableComment(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableSeries(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableInteraction(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableConfig(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

// insert default configs to db
func commandConfigMigration() *cli.Command {
	return &cli.Command{
		Name:        "migrate-config",
		Description: "Insert default configs to db",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			configs := []models.Config{
				{Key: services.CONFIG_SERVER_MODE, Value: "production"},
				{Key: services.CONFIG_EVAL_BATCH_SIZE, Value: "50"},
				{Key: services.CONFIG_EVAL_DRAIN_SPEC, Value: "@every 1m"},
				{Key: services.CONFIG_CLAIMS_PER_HOUR, Value: "30"},
				{Key: services.CONFIG_FRAUD_THRESHOLD_DEFAULT, Value: "0.8"},
				{Key: services.CONFIG_NOTIFY_WEBHOOK_URL, Value: ""},
			}

			for _, config := range configs {
				_, err = db.NewInsert().Model(&config).Exec(ctx)
				if err != nil {
					log.Println(err)
				}
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

// commandSeedBadges imports badge definitions from a csv of
// key,name,category,rarity,xp rows.
func commandSeedBadges() *cli.Command {
	return &cli.Command{
		Name: "seed-badges",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "input",
				Value: "./badges.csv",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()

			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			inputPath := c.String("input")
			if _, err := os.Stat(inputPath); os.IsNotExist(err) {
				return err
			}

			file, err := os.Open(inputPath)
			if err != nil {
				return err
			}

			r := csv.NewReader(file)

			for {
				row, err := r.Read()
				if err != nil {
					break
				}
				if len(row) < 5 {
					fmt.Println("skip malformed row", row)
					continue
				}

				xp, err := strconv.Atoi(row[4])
				if err != nil {
					fmt.Println("skip row with bad xp", row)
					continue
				}

				badge := &models.Badge{
					Key:      row[0],
					Name:     row[1],
					Category: models.BadgeCategory(row[2]),
					Rarity:   models.BadgeRarity(row[3]),
					Status:   models.BadgeStatusActive,
					Rewards:  models.BadgeRewards{XP: xp},
				}
				badge.Analytics.RecomputePopularity()

				if _, err := datastore.CreateBadge(ctx, db, badge); err != nil {
					fmt.Println(err)
				}
			}

			return nil
		},
	}
}

func getDb() (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(os.Getenv("DB_DSN")),
		pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
	))

	db := bun.NewDB(sqldb, pgdialect.New())
	return db, nil
}
