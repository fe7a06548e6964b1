package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"localboard/internal/config"
	"localboard/internal/export"
	"localboard/internal/logger"
	peernet "localboard/internal/net"
)

const discoverArg = "discover"
const discoverTimeout = 3 * time.Second

func main() {
	var flags config.Flags
	args, _ := flags.ParseFlags(flag.CommandLine, os.Args[1:])

	cfg, cfgErr := config.LoadConfig(*flags.ConfigFilePath, &flags)
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	if cfgErr != nil {
		logger.Warnf("%v; continuing with defaults", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newNode(cfg)
	if err != nil {
		logger.Fatalf("start: %v", err)
	}

	link := ""
	if len(args) > 0 {
		link = args[0]
	}
	if link == discoverArg {
		links, err := peernet.Browse(discoverTimeout)
		if err != nil {
			logger.Warnf("discovery: %v", err)
		}
		if len(links) == 0 {
			logger.Fatalf("no board found on the local network")
		}
		link = links[0]
		logger.Infof("discovered %s", link)
	}

	if strings.HasPrefix(link, peernet.Scheme) {
		logger.Infof("starting as client of %s", link)
		err = n.join(ctx, link)
	} else {
		logger.Infof("starting as host")
		err = n.host(ctx, *flags.OpenPath)
	}
	if err != nil {
		logger.Errorf("%v", err)
	}

	n.close()
	if path := *flags.SavePath; path != "" {
		if err := n.board.SaveFile(path); err != nil {
			logger.Errorf("save: %v", err)
		}
	}
	if path := *flags.ExportPath; path != "" {
		opts := export.DefaultOptions()
		opts.Title = cfg.Peer.BoardName
		if err := export.ExportPDF(path, n.board.Objects(), opts); err != nil {
			logger.Errorf("export: %v", err)
		} else {
			logger.Infof("board exported to %s", path)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
