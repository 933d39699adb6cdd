package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	qsonetcmd "github.com/vk2dls/qsonet/internal/cmd/qsonet"
)

func main() {
	cfg, err := qsonetcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[QSONET] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := qsonetcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
