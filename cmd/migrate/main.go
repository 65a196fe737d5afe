package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/personal/adunit-lifecycle/migrations"
	"github.com/personal/adunit-lifecycle/pkg/config"
)

const usage = `Usage: %s [OPTIONS] up|down|status|version|create

Applies the journal schema (unit_events) shipped inside the binary.

  up       apply pending migrations
  down     roll back the last migration
  status   list applied and pending migrations
  version  print the current schema version
  create   add a new SQL migration file (requires -dir and -name)

`

func main() {
	configPath := flag.String("config", "", "Configuration file (defaults to ./configs/config.yaml)")
	dir := flag.String("dir", "", "Migrations source directory, used by create")
	name := flag.String("name", "", "Migration name for create")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	// create only writes a file, no database needed
	if command == "create" {
		if *dir == "" || *name == "" {
			log.Fatal("create needs -dir and -name")
		}
		if err := goose.Create(nil, *dir, *name, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		return
	}

	db, err := openDatabase(*configPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	switch command {
	case "up":
		err = migrations.Up(db)
	case "down":
		err = goose.Down(db, migrations.Dir)
	case "status":
		err = goose.Status(db, migrations.Dir)
	case "version":
		var version int64
		if version, err = goose.GetDBVersion(db); err == nil {
			fmt.Printf("Journal schema version: %d\n", version)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

// openDatabase connects using DATABASE_URL, falling back to the configuration
func openDatabase(configPath string) (*sql.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
			cfg.Database.SSLMode,
		)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
