package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dmerejkowsky/libqi/pkg/config"
	"github.com/dmerejkowsky/libqi/pkg/directory"
	"github.com/dmerejkowsky/libqi/pkg/logging"
	"github.com/dmerejkowsky/libqi/pkg/metrics"
	"github.com/dmerejkowsky/libqi/pkg/signature"
	"github.com/dmerejkowsky/libqi/pkg/tracing"
	"github.com/dmerejkowsky/libqi/pkg/transport"
)

// newSigCommand groups the signature tooling.
func newSigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sig",
		Short: "Inspect type signatures",
	}

	parseCmd := &cobra.Command{
		Use:   "parse <signature>",
		Short: "Parse a signature and print its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := signature.Parse(args[0])
			if err != nil {
				return err
			}
			printSignature(sig, 0)
			return nil
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert <from> <to>",
		Short: "Score the convertibility between two signatures",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := signature.Parse(args[0])
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			to, err := signature.Parse(args[1])
			if err != nil {
				return fmt.Errorf("target: %w", err)
			}
			score := from.IsConvertibleTo(to)
			switch {
			case score == 0:
				color.Red("%s -> %s: impossible", from, to)
			case score == 1:
				color.Green("%s -> %s: identical", from, to)
			default:
				color.Yellow("%s -> %s: %.3f", from, to, score)
			}
			return nil
		},
	}

	splitCmd := &cobra.Command{
		Use:   "split <method-signature>",
		Short: "Split a full method signature into return, name and parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ret, name, params, err := signature.Split(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("return:     %s\n", orDash(ret))
			fmt.Printf("name:       %s\n", name)
			fmt.Printf("parameters: %s\n", params)
			return nil
		},
	}

	cmd.AddCommand(parseCmd, convertCmd, splitCmd)
	return cmd
}

func printSignature(sig signature.Signature, depth int) {
	for _, elem := range sig.Elements() {
		printElement(elem, depth)
	}
}

func printElement(elem signature.Element, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	line := fmt.Sprintf("%s%s", indent, kindName(elem.Kind))
	if elem.Annotation != "" {
		line += fmt.Sprintf(" <%s>", elem.Annotation)
	}
	fmt.Println(line)
	if elem.HasChildren() {
		printSignature(elem.Children(), depth+1)
	}
}

func kindName(k signature.Kind) string {
	names := map[signature.Kind]string{
		signature.KindNone: "none", signature.KindBool: "bool",
		signature.KindInt8: "int8", signature.KindUInt8: "uint8",
		signature.KindVoid: "void", signature.KindInt16: "int16",
		signature.KindUInt16: "uint16", signature.KindInt32: "int32",
		signature.KindUInt32: "uint32", signature.KindInt64: "int64",
		signature.KindUInt64: "uint64", signature.KindFloat: "float",
		signature.KindDouble: "double", signature.KindString: "string",
		signature.KindList: "list", signature.KindMap: "map",
		signature.KindTuple: "tuple", signature.KindDynamic: "dynamic",
		signature.KindRaw: "raw", signature.KindPointer: "pointer",
		signature.KindObject: "object", signature.KindUnknown: "unknown",
	}
	if name, ok := names[k]; ok {
		return name
	}
	return k.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// newNodeCommand runs a node hosting the demo clock service.
func newNodeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a qi node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultNodeConfig()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			log := logging.New(logging.Config{
				MinLevel: parseLevel(cfg.Logging.Level),
				Format:   parseFormat(cfg.Logging.Format),
			})
			defer log.Close()

			var met *metrics.Metrics
			if cfg.Metrics.Enabled {
				met = metrics.New(metrics.DefaultConfig())
			}
			if cfg.Tracing.Enabled {
				tp, err := tracing.Init(&tracing.Config{
					ServiceName:    cfg.Name,
					ServiceVersion: version,
					ExporterType:   cfg.Tracing.ExporterType,
					Endpoint:       cfg.Tracing.Endpoint,
					SamplingRate:   cfg.Tracing.SamplingRate,
					Enabled:        true,
				})
				if err != nil {
					return err
				}
				if tp != nil {
					defer tp.Shutdown(context.Background())
				}
			}

			dir := pickDirectory(cfg)
			node := transport.NewNode(cfg, dir, log, met)
			if err := node.Listen(); err != nil {
				return err
			}
			svc := newClockService(node.Runtime().Object())
			if _, err := node.AddService("clock", svc).Value(); err != nil {
				return err
			}
			color.Green("node %s listening on %s", cfg.Name, node.Endpoint())

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return node.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML node config")
	return cmd
}

// newDirectoryCommand queries the service directory.
func newDirectoryCommand() *cobra.Command {
	var redisAddr string

	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Query the service directory",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered services",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := directory.NewRedis(directory.RedisOptions{Addr: redisAddr})
			defer dir.Close()
			names, err := dir.Services().Value()
			if err != nil {
				return err
			}
			for _, name := range names {
				endpoint, err := dir.Lookup(name).Value()
				if err != nil {
					continue
				}
				fmt.Printf("%s\t%s\n", name, endpoint)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&redisAddr, "redis", "127.0.0.1:6379", "redis directory address")
	cmd.AddCommand(listCmd)
	return cmd
}

func parseLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}

func parseFormat(s string) logging.LogFormat {
	if s == "json" {
		return logging.JSONFormat
	}
	return logging.TextFormat
}

func pickDirectory(cfg config.NodeConfig) directory.Directory {
	if cfg.DirectoryURL == "" {
		return directory.NewMemory()
	}
	return directory.NewRedis(directory.RedisOptions{Addr: cfg.DirectoryURL})
}
