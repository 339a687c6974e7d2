// Command mimicd runs a MySQL wire-protocol front end backed by an
// in-memory SQL engine. Grounded on the teacher's root main.go: parse
// -configPath, load conf, init the logger, then start the server and
// block.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mimicd/mimicd"
	"github.com/mimicd/mimicd/examples/memorybackend"
	"github.com/mimicd/mimicd/internal/conf"
	"github.com/mimicd/mimicd/internal/logger"
	"github.com/mimicd/mimicd/internal/session"
)

const help = `
******************************************************************************************
  mimicd - a MySQL wire-protocol front end
  -configPath  path to an ini configuration file ([mysqld]/[session]/[log] sections)
******************************************************************************************
`

func main() {
	fmt.Print(help)

	var configPath string
	flag.StringVar(&configPath, "configPath", "", "path to mimicd's ini configuration file")
	flag.Parse()

	cfg, err := conf.Load(conf.CommandLineArgs{ConfigPath: configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, FilePath: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("mimicd starting, listening on %s:%d", cfg.BindAddress, cfg.Port)

	identity := memorybackend.NewIdentityStore()
	identity.AddUser("root", "", "mysql_native_password")

	store := memorybackend.NewStore()
	store.CreateTable("demo", "greeting", []memorybackend.Column{
		{Name: "id", Type: "INT"},
		{Name: "message", Type: "TEXT"},
	})
	_ = store.Insert("demo", "greeting", []interface{}{int64(1), "hello from mimicd"})

	srv := mimicd.New(cfg, identity, func() session.Backend {
		return memorybackend.New(store)
	}, nil)

	if err := srv.Start(); err != nil {
		logger.Errorf("failed to start server: %v", err)
		os.Exit(1)
	}
	srv.WaitForSignal()
}
