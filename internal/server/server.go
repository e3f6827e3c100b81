package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/emrgen/digidoc/internal/config"
	"github.com/emrgen/digidoc/internal/jobs"
	"github.com/emrgen/digidoc/internal/service"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/gobuffalo/packr"
	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "digidoc.v1.DocumentService"

// Server represents the server
type Server struct {
	cfg *config.Config
}

// NewServer creates a new server
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Start runs the servers until SIGINT or SIGTERM.
func (s *Server) Start() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := Run(ctx, s.cfg); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// NewDocumentService wires the document service from configuration and seeds the policy file.
func NewDocumentService(ctx context.Context, cfg *config.Config) (*service.DocumentService, func(), error) {
	db, err := config.OpenDb(cfg)
	if err != nil {
		return nil, nil, err
	}

	docStore := store.NewGormStore(db)
	if err = docStore.Migrate(); err != nil {
		return nil, nil, err
	}

	compressor, err := cfg.Compressor()
	if err != nil {
		return nil, nil, err
	}

	publisher, err := cfg.Publisher()
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewDocumentService(compressor, docStore, publisher,
		service.WithSelfApproval(cfg.AllowSelfApproval),
		service.WithDefaultRetentionYears(cfg.DefaultRetentionYears),
	)

	if cfg.PolicyFile != "" {
		policies, err := config.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			_ = publisher.Close()
			return nil, nil, err
		}
		if err = svc.SeedPolicies(ctx, policies.Retention, policies.ApprovalPolicies()); err != nil {
			_ = publisher.Close()
			return nil, nil, err
		}
		logrus.Infof("seeded %d retention and %d approval policies from %s",
			len(policies.Retention), len(policies.Approval), cfg.PolicyFile)
	}

	closer := func() {
		if err := publisher.Close(); err != nil {
			logrus.Errorf("error closing event publisher: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	return svc, closer, nil
}

// Run starts the grpc health server, the rest gateway and the retention job, and stops
// them all when ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	grpcPort := ":" + cfg.GrpcPort
	httpPort := ":" + cfg.HttpPort

	svc, closeService, err := NewDocumentService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeService()

	gl, err := net.Listen("tcp", grpcPort)
	if err != nil {
		return err
	}

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		_ = gl.Close()
		return err
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			grpcrecovery.UnaryServerInterceptor(),
			// log the request time
			UnaryGrpcRequestTimeInterceptor(),
		)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	restHandler, err := NewHandler(svc)
	if err != nil {
		return err
	}

	apiMux := http.NewServeMux()
	openapiDocs := packr.NewBox("../../docs/v1")
	docsPath := "/v1/docs/"
	apiMux.Handle(docsPath, http.StripPrefix(docsPath, http.FileServer(openapiDocs)))
	apiMux.Handle("/", restHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderPrincipalID, HeaderPrincipalRole},
		AllowCredentials: true,
	})

	restServer := &http.Server{
		Addr:    httpPort,
		Handler: c.Handler(RequestTimeMiddleware(apiMux)),
	}

	executor := jobs.NewTaskExecutor(jobs.NewRetentionJob(cfg.RetentionSchedule, svc))
	if err = executor.Start(); err != nil {
		return fmt.Errorf("start retention job: %w", err)
	}
	defer executor.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.Info("starting rest gateway on: ", httpPort)
		logrus.Info("click on the following link to view the API documentation: http://localhost", httpPort, "/v1/docs/")
		if err := restServer.Serve(rl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rest gateway: %w", err)
		}
		logrus.Infof("rest gateway stopped")
		return nil
	})

	g.Go(func() error {
		logrus.Info("starting grpc server on: ", grpcPort)
		if err := grpcServer.Serve(gl); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		logrus.Infof("grpc server stopped")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Infof("shutting down")

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if err := restServer.Shutdown(context.Background()); err != nil {
			logrus.Errorf("error stopping rest gateway: %v", err)
		}
		return nil
	})

	return g.Wait()
}
