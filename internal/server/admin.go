package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passvault/internal/observability"
)

// Admin exposes health and metrics over HTTP, separate from the vault
// listener so that operational traffic never shares the protocol port.
type Admin struct {
	addr    string
	started time.Time
	router  *gin.Engine
}

func NewAdmin(addr string) *Admin {
	observability.RegisterMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{addr: addr, started: time.Now(), router: r}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(a.started).String(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return a
}

// Serve runs the admin endpoint until ctx is cancelled.
func (a *Admin) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: a.addr, Handler: a.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
