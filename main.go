package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/ngx-proxy/forward-engine/component/ca"
	"github.com/ngx-proxy/forward-engine/component/resolver"
	"github.com/ngx-proxy/forward-engine/config"
	"github.com/ngx-proxy/forward-engine/constant"
	"github.com/ngx-proxy/forward-engine/listener"
	"github.com/ngx-proxy/forward-engine/log"
	"github.com/ngx-proxy/forward-engine/rule/blacklist"
)

var (
	configFile string
	port       int
	threads    int
	certFile   string
	keyFile    string
	version    bool
)

func init() {
	flag.StringVar(&configFile, "f", "", "configuration file (json or yaml)")
	flag.IntVar(&port, "p", 0, "listen port, overrides configuration")
	flag.IntVar(&threads, "t", 0, "worker count, overrides configuration")
	flag.StringVar(&certFile, "cert", "", "TLS certificate chain, overrides configuration")
	flag.StringVar(&keyFile, "key", "", "TLS private key, overrides configuration")
	flag.BoolVar(&version, "v", false, "show version")
	flag.Parse()
}

func main() {
	if version {
		fmt.Println(constant.Version)
		os.Exit(0)
	}

	cfg, err := config.Parse(configFile)
	if err != nil {
		log.Fatalln("initial configuration error: %s", err.Error())
	}
	if port > 0 && port < 65536 {
		cfg.Port = uint16(port)
	}
	if threads > 0 {
		cfg.Threads = threads
	}
	if certFile != "" {
		cfg.Certificate = certFile
	}
	if keyFile != "" {
		cfg.PrivateKey = keyFile
	}
	log.SetLevel(cfg.LogLevel)

	var tlsConf *tls.Config
	if cfg.Certificate != "" && cfg.PrivateKey != "" {
		cert, err := ca.LoadTLSKeyPair(cfg.Certificate, cfg.PrivateKey)
		if err != nil {
			log.Fatalln("load certificate error: %s", err.Error())
		}
		log.Infoln("certificate fingerprint: %s", ca.CalculateFingerprint(cert.Certificate[0]))
		tlsConf = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	} else {
		log.Warnln("no certificate configured, obscura pipeline disabled")
	}

	bl := blacklist.New()
	bl.Load(cfg.BlacklistIPs, cfg.BlacklistDomains)

	srv, err := listener.NewServer(listener.Options{
		Addr:       fmt.Sprintf(":%d", cfg.Port),
		TLSConfig:  tlsConf,
		Resolver:   resolver.New(cfg.Nameserver),
		Blacklist:  bl,
		ReverseMap: cfg.ReverseMap,
	}, cfg.Threads)
	if err != nil {
		log.Fatalln("bind error: %s", err.Error())
	}
	log.Infoln("listening on %s with %d workers", srv.Addr(), cfg.Threads)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalln("serve error: %s", err.Error())
	}
	log.Infoln("shutdown complete")
}
