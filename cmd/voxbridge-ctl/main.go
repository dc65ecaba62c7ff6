package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	cli "github.com/spf13/pflag"

	"voxbridge/internal/client"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: voxbridge-ctl [-u URL] health | record N | history [N]\n")
	cli.PrintDefaults()
}

func main() {
	url := cli.StringP("url", "u", client.DefaultURL, "Daemon base URL")
	cli.Usage = usage
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	c := client.New(*url)
	ctx := context.Background()

	var (
		raw []byte
		err error
	)
	switch args[0] {
	case "health":
		_, raw, err = c.Health(ctx)
	case "record":
		seconds := 3
		if len(args) > 1 {
			if seconds, err = strconv.Atoi(args[1]); err != nil {
				fmt.Fprintf(os.Stderr, "invalid duration: %q\n", args[1])
				os.Exit(2)
			}
		}
		_, raw, err = c.Record(ctx, seconds)
	case "history":
		limit := 20
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				fmt.Fprintf(os.Stderr, "invalid limit: %q\n", args[1])
				os.Exit(2)
			}
		}
		_, raw, err = c.History(ctx, limit)
	default:
		usage()
		os.Exit(2)
	}

	if len(raw) > 0 {
		fmt.Println(string(raw))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
