// Command rollcall is the terminal client for the attendance API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"rollcall/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := commandLine{ctx: ctx, out: os.Stdout, errOut: os.Stderr}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				fmt.Fprintf(os.Stderr, "error (%d): %s\n", apiErr.Status, apiErr.Detail)
			} else {
				fmt.Fprintf(os.Stderr, "error: %s\n", err)
			}
		}
		os.Exit(1)
	}
}
