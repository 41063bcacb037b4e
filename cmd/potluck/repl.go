package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/potlucklabs/potluck"
)

const usage = `commands:
  create <name>|<ingredients>|<instructions>   create a recipe
  ls l                                         list local recipes
  ls a                                         list all recipes
  ls p                                         list known peers
  publish <id>                                 share one recipe with the overlay
  publish all                                  share every local recipe
  req <peer>                                   request a peer's shared recipes
  req all                                      request everyone's shared recipes
  quit`

// runREPL reads commands line by line and dispatches them to the node. It
// returns on EOF, on "quit" or when ctx is cancelled. Command errors are
// printed and never end the loop.
func runREPL(ctx context.Context, node potluck.Node, scanner *bufio.Scanner, out io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		if err := dispatch(ctx, node, line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, node potluck.Node, line string, out io.Writer) error {
	switch {
	case line == "help":
		fmt.Fprintln(out, usage)
		return nil
	case strings.HasPrefix(line, "create "):
		return create(ctx, node, strings.TrimPrefix(line, "create "), out)
	case line == "ls l":
		recipes, err := node.ListLocal(ctx)
		if err != nil {
			return err
		}
		printRecipes(out, recipes)
		return nil
	case line == "ls a":
		recipes, err := node.ListAll(ctx)
		if err != nil {
			return err
		}
		printRecipes(out, recipes)
		return nil
	case line == "ls p":
		peers, err := node.ListPeers(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "known peers (%d):\n", len(peers))
		for _, p := range peers {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return nil
	case line == "publish all":
		count, err := node.PublishAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "published %d recipes\n", count)
		return nil
	case strings.HasPrefix(line, "publish "):
		id, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "publish ")), 10, 64)
		if err != nil {
			return errors.New("usage: publish <id>|all")
		}
		if err := node.PublishOne(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "published recipe %d\n", id)
		return nil
	case line == "req all":
		return node.Request(ctx, potluck.TargetAll())
	case strings.HasPrefix(line, "req "):
		peerID := strings.TrimSpace(strings.TrimPrefix(line, "req "))
		if peerID == "" {
			return errors.New("usage: req <peer>|all")
		}
		return node.Request(ctx, potluck.TargetPeer(potluck.PeerID(peerID)))
	default:
		return errors.Newf("unknown command %q (try help)", line)
	}
}

func create(ctx context.Context, node potluck.Node, rest string, out io.Writer) error {
	parts := strings.SplitN(rest, "|", 3)
	if len(parts) < 3 {
		return errors.New("usage: create <name>|<ingredients>|<instructions>")
	}
	r, err := node.Create(ctx, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created recipe %d: %s\n", r.ID, r.Name)
	return nil
}

func printRecipes(out io.Writer, recipes []potluck.Recipe) {
	fmt.Fprintf(out, "recipes (%d):\n", len(recipes))
	for _, r := range recipes {
		shared := ""
		if r.Shared {
			shared = " [shared]"
		}
		fmt.Fprintf(out, "  %d. %s (from %s)%s\n", r.ID, r.Name, r.Publisher, shared)
	}
}
