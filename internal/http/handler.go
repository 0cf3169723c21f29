// Package http exposes the quoting service over gin. All I/O lives
// here: the engine and registry below it are plain synchronous calls.
package http

import (
	"context"
	"errors"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/zcurve-labs/quote-engine/internal/config"
	"github.com/zcurve-labs/quote-engine/internal/http/httputil"
	"github.com/zcurve-labs/quote-engine/internal/http/middlewares"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
	"github.com/zcurve-labs/quote-engine/internal/services"
)

const (
	APIVersion  = "v1"
	ServiceName = "http-service"
)

type HTTPService struct {
	quoterSvc   *quoter.Service
	rateLimiter *middlewares.RateLimiter
	server      *gohttp.Server
	conf        *config.GeneralConfig
	logger      *services.ServiceLogger

	handlers []httputil.IHttpHandler
}

func NewHTTPService(conf *config.GeneralConfig, quoterSvc *quoter.Service) *HTTPService {
	svc := &HTTPService{
		conf:        conf,
		quoterSvc:   quoterSvc,
		rateLimiter: middlewares.NewRateLimiter(10, 20),
	}
	svc.logger = services.NewServiceLogger(svc)
	svc.handlers = []httputil.IHttpHandler{
		NewQuoteHandler(quoterSvc),
		NewCurveHandler(quoterSvc),
		NewPoolHandler(quoterSvc),
		NewSaleHandler(quoterSvc),
	}
	return svc
}

func (svc *HTTPService) ID() string {
	return ServiceName
}

// Router assembles the full route tree. Separate from Start so tests
// can drive it through httptest without binding a socket.
func (svc *HTTPService) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders("Authorization", "X-Admin-Token")
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware())
	r.Use(svc.rateLimiter.RateLimitMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	pub := api.Group(APIVersion)
	admin := api.Group(APIVersion + "/admin")
	admin.Use(middlewares.AdminAuth(svc.conf.AdminToken))

	for _, h := range svc.handlers {
		h.SetRoutes(pub.Group(h.Root()), admin.Group(h.Root()))
	}
	return r
}

func (svc *HTTPService) Start() error {
	svc.server = &gohttp.Server{
		Addr:              svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	svc.logger.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && !errors.Is(err, gohttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (svc *HTTPService) Stop() error {
	if svc.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		svc.logger.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	svc.logger.Info().Msg("http server stopped gracefully")
	return nil
}
