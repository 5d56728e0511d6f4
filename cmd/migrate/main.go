package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory on disk (default: the embedded set; create and validate use "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name for -cmd=create")
	target := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()

	// create and validate only touch files.
	switch *cmd {
	case "create":
		if *name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(diskDir(*dir), *name)
		if err != nil {
			exit("failed to create migration: %v", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(diskDir(*dir)); err != nil {
			exit("migration validation failed: %v", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit("failed to load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":   cfg.App.Env,
		"store": cfg.Store.NormalizedDriver(),
		"cmd":   *cmd,
	})
	if !cfg.Store.UsesSQL() {
		exit("store driver %q has no sql migrations", cfg.Store.Driver)
	}

	client, err := db.New(ctx, cfg.Store, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to extract sql.DB", err)
		os.Exit(1)
	}

	var fsys fs.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}
	provider, err := migrate.NewProvider(sqlDB, cfg.Store.NormalizedDriver(), fsys)
	if err != nil {
		logg.Error(ctx, "failed to load migrations", err)
		os.Exit(1)
	}
	if *cmd == "version" && *target == "" {
		exit("missing -version for -cmd=version")
	}
	if err := migrate.Run(ctx, provider, *cmd, *target, os.Stdout); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func diskDir(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
