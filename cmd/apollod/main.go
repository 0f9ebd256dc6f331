// Command apollod is the APOLLO coordinator daemon: it loads the
// persisted topology, dictionary, and directive state, serves the
// CoreConnector gRPC service plugins dial into, and runs the liveness
// sweep that evicts sessions gone quiet too long.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/jLSumner/apollo/apollopb"
	"github.com/jLSumner/apollo/internal/authstore"
	"github.com/jLSumner/apollo/internal/dictionary"
	"github.com/jLSumner/apollo/internal/directive"
	"github.com/jLSumner/apollo/internal/gate"
	"github.com/jLSumner/apollo/internal/liveness"
	"github.com/jLSumner/apollo/internal/logring"
	"github.com/jLSumner/apollo/internal/rpcserver"
	"github.com/jLSumner/apollo/internal/session"
	"github.com/jLSumner/apollo/internal/topology"
)

var (
	listenAddr        = flag.String("listen", "[::1]:50051", "CoreConnector gRPC listen address")
	metricsAddr       = flag.String("metrics_listen", "[::1]:9090", "Prometheus /metrics listen address")
	logDir            = flag.String("log_dir", "logs", "directory for rotated log files")
	securityCodesFile = flag.String("security_codes", "security_codes.txt", "path to the privileged-action confirmation codes file")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := logring.CleanupOldLogs(*logDir); err != nil {
		glog.Warningf("[MAIN] log cleanup failed: %v", err)
	}
	ring, err := logring.New(*logDir)
	if err != nil {
		glog.Fatalf("[MAIN] failed to open log ring: %v", err)
	}
	defer ring.Close()
	logring.SetActive(ring)

	topo, err := topology.Load()
	if err != nil {
		logring.Fatalf("[MAIN] failed to load topology: %v", err)
	}
	dict, err := dictionary.Load()
	if err != nil {
		logring.Fatalf("[MAIN] failed to load dictionary: %v", err)
	}
	engine, err := directive.Load()
	if err != nil {
		logring.Fatalf("[MAIN] failed to load directives: %v", err)
	}
	auth, err := authstore.Load()
	if err != nil {
		logring.Fatalf("[MAIN] failed to load administrator credentials: %v", err)
	}
	if !auth.IsProvisioned() {
		fmt.Println("no administrators provisioned yet; running setup wizard")
		auth, err = authstore.RunSetupWizard(os.Stdin, os.Stdout)
		if err != nil {
			logring.Fatalf("[MAIN] setup wizard failed: %v", err)
		}
	}
	codes, err := gate.LoadSecurityCodes(*securityCodesFile)
	if err != nil {
		logring.Fatalf("[MAIN] failed to load security codes: %v", err)
	}
	_ = gate.New(codes, topo, dict, engine)

	sessions := session.NewRegistry()
	srv := rpcserver.New(topo, engine, sessions)

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(apollopb.Codec))
	apollopb.RegisterCoreConnectorServer(grpcServer, srv)

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logring.Fatalf("[MAIN] failed to listen on %s: %v", *listenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := liveness.New(sessions)
	go monitor.Run(ctx)

	go func() {
		logring.Infof("[MAIN] CoreConnector listening on %s", *listenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logring.Errorf("[MAIN] gRPC server stopped: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: metricsMux}
	go func() {
		logring.Infof("[MAIN] metrics listening on %s", *metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logring.Errorf("[MAIN] metrics server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logring.Infof("[MAIN] shutting down")
	cancel()
	grpcServer.GracefulStop()
	_ = metricsServer.Close()
}
