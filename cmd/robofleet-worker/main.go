package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sohaibzafar701/robofleet/internal/agent"
)

func main() {
	addr := ":8090"
	if v := os.Getenv("ROBOFLEET_WORKER_ADDR"); v != "" {
		addr = v
	}
	srv := &agent.Server{Version: "dev"}
	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}()
	fmt.Fprintf(os.Stdout, "robofleet-worker listening on %s\n", addr)
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	fmt.Fprintln(os.Stdout, "robofleet-worker shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
