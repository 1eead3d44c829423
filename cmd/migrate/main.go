// Package main 数据库迁移命令行工具，基于go-migrate，
// 支持向上迁移、按步回滚、迁移到指定版本及脏状态修复
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Diouf7AH/jewellery-management-sub001/internal/config"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/database"
	"github.com/Diouf7AH/jewellery-management-sub001/internal/logger"
)

func main() {
	var (
		action = flag.String("action", "up", "migration action: up, down, version, force")
		steps  = flag.Int("steps", 1, "number of steps for down migration")
		target = flag.Uint("target", 0, "target version for version or force migration")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database", "error", err)
		}
	}()

	dir := cfg.Migrations.Dir

	switch *action {
	case "up":
		lg.Info("running up migrations")
		if err := db.RunMigrations(dir); err != nil {
			lg.Sugar().Fatalw("failed to run up migrations", "error", err)
		}
		lg.Info("up migrations completed")

	case "down":
		lg.Sugar().Infow("running down migrations", "steps", *steps)
		if err := db.MigrateDown(dir, *steps); err != nil {
			lg.Sugar().Fatalw("failed to run down migrations", "error", err)
		}
		lg.Info("down migrations completed")

	case "version":
		if *target == 0 {
			lg.Fatal("target version must be specified for version migration")
		}
		lg.Sugar().Infow("migrating to version", "target", *target)
		if err := db.MigrateToVersion(dir, *target); err != nil {
			lg.Sugar().Fatalw("failed to migrate to version", "error", err)
		}
		lg.Info("version migration completed")

	case "force":
		// force允许目标为0，表示重置到无迁移状态
		lg.Sugar().Warnw("forcing migration version, dirty state will be cleared", "target", *target)
		if err := db.ForceMigrationVersion(dir, *target); err != nil {
			lg.Sugar().Fatalw("failed to force migration version", "error", err)
		}
		lg.Info("migration version forced")

	default:
		fmt.Printf("Usage: %s -action=[up|down|version|force] [options]\n", os.Args[0])
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  ./migrate -action=up                  # apply all pending migrations")
		fmt.Println("  ./migrate -action=down -steps=1       # roll back one migration")
		fmt.Println("  ./migrate -action=version -target=3   # migrate to a specific version")
		fmt.Println("  ./migrate -action=force -target=0     # reset dirty state")
		os.Exit(1)
	}
}
