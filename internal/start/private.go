// Package start boots the engine and its JSON-RPC front end from environment
// configuration.
package start

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/okx/aa-settlement/internal/config"
	"github.com/okx/aa-settlement/internal/logger"
	"github.com/okx/aa-settlement/internal/o11y"
	"github.com/okx/aa-settlement/pkg/account"
	"github.com/okx/aa-settlement/pkg/chain"
	"github.com/okx/aa-settlement/pkg/client"
	"github.com/okx/aa-settlement/pkg/engine"
	"github.com/okx/aa-settlement/pkg/jsonrpc"
	"github.com/okx/aa-settlement/pkg/ledger"
	"github.com/okx/aa-settlement/pkg/protocol"
)

// factoryMarker is the code installed at recognized factory addresses at
// boot. The engine only checks code presence.
var factoryMarker = []byte{0x02}

// PrivateMode runs the engine with a whitelisted bundler identity and the
// full admin namespace exposed. It blocks until SIGINT or SIGTERM.
func PrivateMode(conf *config.Values) error {
	log := logger.NewZeroLogr().WithName("aa_engine")

	if conf.OTELServiceName != "" {
		shutdown := o11y.Init(&o11y.Opts{
			ServiceName:       conf.OTELServiceName,
			CollectorHeaders:  conf.OTELCollectorHeaders,
			CollectorEndpoint: conf.OTELCollectorEndpoint,
			InsecureMode:      conf.OTELInsecureMode,
			ChainID:           conf.ChainID.String(),
			Address:           conf.EngineAddress.String(),
		})
		defer shutdown()
	}

	store, err := ledger.NewBadgerStore(conf.DataDirectory)
	if err != nil {
		return err
	}
	ldg, err := ledger.New(store)
	if err != nil {
		return err
	}
	defer func() {
		_ = ldg.Close()
	}()

	state := chain.NewState()
	registry := protocol.NewRegistry()

	eng := engine.New(ldg, state, registry, engine.Config{
		Self:    conf.EngineAddress,
		Admin:   conf.AdminAddress,
		ChainID: conf.ChainID,
		BaseFee: conf.BaseFee,
		Logger:  log,
	})

	// Boot-time policy: whitelist the configured bundler, or fall back to
	// unrestricted single-op mode when none is configured.
	if conf.BundlerAddress != (common.Address{}) {
		if err := eng.SetBundler(conf.AdminAddress, conf.BundlerAddress, true); err != nil {
			return err
		}
	} else if err := eng.SetUnrestricted(conf.AdminAddress, true); err != nil {
		return err
	}
	for _, addr := range conf.FactoryAddresses {
		registry.PutFactory(addr, account.NewSimpleFactory(addr, registry))
		state.SetCode(addr, factoryMarker)
		if err := eng.SetFactory(conf.AdminAddress, addr, true); err != nil {
			return err
		}
	}

	c := client.New(eng, client.Config{
		Bundler:      conf.BundlerAddress,
		Beneficiary:  conf.BeneficiaryAddress,
		MaxBatchSize: conf.MaxBatchSize,
		BaseFee:      conf.BaseFee,
		Logger:       log,
	})
	adapter := client.NewRpcAdapter(c, eng, conf.AdminAddress)

	gin.SetMode(conf.GinMode)
	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	if conf.OTELServiceName != "" {
		r.Use(otelgin.Middleware(conf.OTELServiceName))
	}
	r.GET("/ping", func(g *gin.Context) {
		g.Status(http.StatusOK)
	})
	r.POST("/", jsonrpc.Controller(adapter))
	r.POST("/rpc", jsonrpc.Controller(adapter))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "port", conf.Port, "chain_id", conf.ChainID.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if !conf.IsOpsPollingDisabled {
		g.Go(func() error {
			err := c.Run(ctx, conf.BatchInterval)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
