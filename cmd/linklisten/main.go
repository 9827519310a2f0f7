// linklisten: bench stand-in for the robot controller
//
// Listens where the controller would, prints every targets update the
// vision stage sends and answers heartbeats so the link stays active.
// Useful for checking ranges on the bench without the robot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-targetlink/internal/config"
	"github.com/teslashibe/go-targetlink/internal/log"
	"github.com/teslashibe/go-targetlink/pkg/link"
	"github.com/teslashibe/go-targetlink/pkg/telemetry"
)

func main() {
	addr := flag.String("addr", net.JoinHostPort("", config.DefaultControllerPort), "Listen address")
	codecName := flag.String("codec", "json", "Frame codec: json, cbor")
	quiet := flag.Bool("quiet", false, "Only print a summary every second")
	silent := flag.Bool("silent", false, "Never answer heartbeats (lets the vision side time out)")
	level := flag.String("log", "info", "Log level")
	flag.Parse()

	log.Init(*level)

	if _, err := telemetry.CodecByName(*codecName); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Printf("❌ Failed to listen on %s: %v\n", *addr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	context.AfterFunc(ctx, func() { ln.Close() })

	fmt.Printf("📡 Waiting for the vision stage on %s (%s)\n", ln.Addr(), *codecName)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("👋 Goodbye!")
				return
			}
			fmt.Printf("⚠️  Accept failed: %v\n", err)
			continue
		}
		// One vision stage at a time.
		serve(ctx, conn, *codecName, *quiet, *silent)
	}
}

func serve(ctx context.Context, conn net.Conn, codecName string, quiet, silent bool) {
	logger := log.Component("linklisten")
	codec, _ := telemetry.CodecByName(codecName)
	peer := link.NewPeer(conn, codec, "linklisten")
	defer peer.Close()
	stop := context.AfterFunc(ctx, func() { peer.Close() })
	defer stop()

	fmt.Printf("✅ Vision stage connected from %s\n", conn.RemoteAddr())

	var updates, targets, heartbeats int
	window := time.Now()
	for {
		msg, err := peer.Next()
		if errors.Is(err, link.ErrBadFrame) {
			logger.Warn("undecodable frame", "error", err)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				fmt.Printf("🔌 Vision stage disconnected (%d heartbeats)\n", heartbeats)
			} else {
				fmt.Printf("🔌 Connection lost: %v\n", err)
			}
			return
		}

		switch msg.Type {
		case telemetry.TypeHeartbeat:
			heartbeats++
			if !silent {
				if err := peer.Heartbeat(); err != nil {
					logger.Warn("heartbeat reply failed", "error", err)
				}
			}
		case telemetry.TypeTargets:
			td := msg.TargetsData()
			if td == nil {
				continue
			}
			updates++
			targets += len(td.Targets)
			if !quiet {
				printUpdate(td)
			}
		default:
			logger.Debug("ignoring message", "type", msg.Type)
		}

		if quiet && time.Since(window) >= time.Second {
			fmt.Printf("📊 %d updates, %d targets in the last %s\n", updates, targets, time.Since(window).Round(time.Millisecond))
			updates, targets = 0, 0
			window = time.Now()
		}
	}
}

func printUpdate(td *telemetry.TargetsData) {
	if len(td.Targets) == 0 {
		fmt.Printf("🎯 t=%d age=%dms: no targets\n", td.CapturedAtNs, td.CapturedAgoMs)
		return
	}
	fmt.Printf("🎯 t=%d age=%dms: %d target(s)\n", td.CapturedAtNs, td.CapturedAgoMs, len(td.Targets))
	for i, r := range td.Targets {
		fmt.Printf("   [%d] x=%.3f y=%.6f z=%.6f theta=%.3f\n", i, r.X, r.Y, r.Z, r.Theta)
	}
}
