// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package main implements stund, a stateless RFC 5389 Binding server.
package main

import (
	"flag"
	"net"
	"os"

	"github.com/pion/logging"

	"github.com/netreap/stun"
)

var (
	configPath  = flag.String("config", "", "path to a TOML config file (see stund.toml.example)")
	listen      = flag.String("listen", "", "address to listen on, overriding the config file")
	fingerprint = flag.Bool("fingerprint", false, "append FINGERPRINT to responses, overriding the config file")
	verbose     = flag.Int("verbose", 1, "0=warn, 1=info, 2=debug, 3=trace")
)

func logLevel(v int) logging.LogLevel {
	switch v {
	case 0:
		return logging.LogLevelWarn
	case 2:
		return logging.LogLevelDebug
	case 3:
		return logging.LogLevelTrace
	default:
		return logging.LogLevelInfo
	}
}

func main() {
	flag.Parse()

	log := logging.NewDefaultLeveledLoggerForScope("stund", logLevel(*verbose), os.Stdout)

	cfg := defaultConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			log.Errorf("loading config %s: %s", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *fingerprint {
		cfg.Fingerprint = true
	}

	srv := &stun.Server{
		UseFingerprint: cfg.Fingerprint,
		Software:       cfg.Software,
	}
	if len(cfg.Users) > 0 {
		srv.Credentials = stun.StaticCredentials(cfg.Users)
		log.Infof("short-term credentials enabled for %d user(s)", len(cfg.Users))
	}

	conn, err := net.ListenPacket("udp", cfg.Listen)
	if err != nil {
		log.Errorf("listen on %s: %s", cfg.Listen, err)
		os.Exit(1)
	}
	defer conn.Close() //nolint:errcheck

	log.Infof("listening on %s (udp)", conn.LocalAddr())
	serve(conn, srv, log)
}

// serve reads datagrams from conn until it errors, answering each via
// srv.Process and logging every accepted or rejected request.
func serve(conn net.PacketConn, srv *stun.Server, log logging.LeveledLogger) {
	buf := make([]byte, stun.MaxPacketSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			log.Errorf("read: %s", err)
			return
		}

		action, err := srv.Process(addr, buf[:n])
		if err != nil {
			log.Errorf("processing request from %s: %s", addr, err)
			continue
		}

		switch a := action.(type) {
		case stun.Ignore:
			log.Tracef("ignored %d bytes from %s", n, addr)
		case stun.Respond:
			if _, err := conn.WriteTo(a.Response.Raw, addr); err != nil {
				log.Errorf("writing response to %s: %s", addr, err)
				continue
			}
			log.Debugf("answered Binding request from %s", addr)
		case stun.ServerError:
			if _, err := conn.WriteTo(a.Response.Raw, addr); err != nil {
				log.Errorf("writing error response to %s: %s", addr, err)
				continue
			}
			log.Warnf("rejected request from %s", addr)
		}
	}
}
