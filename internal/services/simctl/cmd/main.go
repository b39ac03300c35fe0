package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/services/control"
)

const usage = `usage: simctl [-addr host:port] <command> [args]

commands:
  start                    start the simulation clock
  stop                     stop the simulation clock
  snapshot                 print the current stats snapshot
  temp <celsius>           set the world temperature
  tank <index> <liters>    add water to a tank
  farm <index> <liters>    add surface water to a farm
  flow <index> <l/min>     set the base flow of a pipe
`

// parseCommand maps the water and temperature subcommands onto a Command.
func parseCommand(args []string) (messages.Command, error) {
	var cmd messages.Command
	if len(args) == 0 {
		return cmd, fmt.Errorf("missing command")
	}
	want := map[string]struct {
		typ   messages.CommandType
		nargs int
	}{
		"temp": {messages.CmdSetTemperature, 1},
		"tank": {messages.CmdAddTankWater, 2},
		"farm": {messages.CmdAddFarmWater, 2},
		"flow": {messages.CmdSetBaseFlow, 2},
	}
	sub, ok := want[args[0]]
	if !ok {
		return cmd, fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 != sub.nargs {
		return cmd, fmt.Errorf("%s takes %d argument(s)", args[0], sub.nargs)
	}
	cmd.Type = sub.typ
	valueArg := args[1]
	if sub.nargs == 2 {
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 {
			return cmd, fmt.Errorf("invalid index %q", args[1])
		}
		cmd.Target = idx
		valueArg = args[2]
	}
	v, err := strconv.ParseFloat(valueArg, 64)
	if err != nil {
		return cmd, fmt.Errorf("invalid value %q: %w", valueArg, err)
	}
	cmd.Value = v
	return cmd, nil
}

func main() {
	addr := flag.String("addr", envOr("SIM_GRPC_ADDR", "localhost:50051"), "simulator gRPC address")
	timeout := flag.Duration("timeout", 5*time.Second, "call timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("simctl: dial %s: %v", *addr, err)
	}
	defer conn.Close()
	client := control.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "start":
		changed, err := client.Start(ctx)
		if err != nil {
			log.Fatalf("simctl: start: %v", err)
		}
		fmt.Printf("started=%v\n", changed)
	case "stop":
		changed, err := client.Stop(ctx)
		if err != nil {
			log.Fatalf("simctl: stop: %v", err)
		}
		fmt.Printf("stopped=%v\n", changed)
	case "snapshot":
		snap, err := client.Snapshot(ctx)
		if err != nil {
			log.Fatalf("simctl: snapshot: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
	default:
		cmd, err := parseCommand(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "simctl: %v\n\n%s", err, usage)
			os.Exit(2)
		}
		res, err := client.Apply(ctx, cmd)
		if err != nil {
			log.Fatalf("simctl: %s: %v", args[0], err)
		}
		fmt.Printf("%s ok (id=%s)\n", cmd.Type, res.ID)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
