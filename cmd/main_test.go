package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/sportswire/gmtrade/internal/adapters/http/api"
	app "github.com/sportswire/gmtrade/internal/app"
	"github.com/sportswire/gmtrade/internal/config"
	"github.com/sportswire/gmtrade/pkg/logger"
	"github.com/sportswire/gmtrade/pkg/metrics"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			// Test with environment variables
			_ = os.Setenv("GMTRADE_ADDR", ":8080")
			_ = os.Setenv("GMTRADE_AUDIT_QUEUE_SIZE", "1000")
			_ = os.Setenv("GMTRADE_AUDIT_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("GMTRADE_ADDR")
				_ = os.Unsetenv("GMTRADE_AUDIT_QUEUE_SIZE")
				_ = os.Unsetenv("GMTRADE_AUDIT_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.AuditQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.AuditWorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithAuditWorkerCount(8),
					app.WithAuditQueueSize(2000),
					app.WithStaleThreshold(12*time.Hour),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then HTTP server should be creatable", func() {
				server := api.NewServer(svc, svc, 100)
				convey.So(server, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				manager := metrics.NewManager()
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should stop when the context is done", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should stop when the context is done", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics update", func() {
			svc := app.New()
			convey.So(svc, convey.ShouldNotBeNil)

			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateServiceMetrics(svc)
				}, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		convey.Convey("When testing full application setup", func() {
			_ = os.Setenv("GMTRADE_ADDR", ":8080")
			_ = os.Setenv("GMTRADE_AUDIT_QUEUE_SIZE", "1000")
			_ = os.Setenv("GMTRADE_AUDIT_WORKER_COUNT", "2")
			defer func() {
				_ = os.Unsetenv("GMTRADE_ADDR")
				_ = os.Unsetenv("GMTRADE_AUDIT_QUEUE_SIZE")
				_ = os.Unsetenv("GMTRADE_AUDIT_WORKER_COUNT")
			}()

			convey.Convey("Then all components should work together", func() {
				if err := logger.Init(); err != nil {
					t.Fatalf("logger init: %v", err)
				}

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)

				svc := app.New(
					app.WithAuditQueueSize(cfg.AuditQueueSize),
					app.WithAuditWorkerCount(cfg.AuditWorkerCount),
					app.WithStaleThreshold(time.Duration(cfg.StalenessThresholdHours)*time.Hour),
				)
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.Start(ctx), convey.ShouldBeNil)
				defer svc.Stop()

				server := api.NewServer(svc, svc, cfg.MaxLeaderboardLimit)
				convey.So(server, convey.ShouldNotBeNil)

				mux := http.NewServeMux()
				convey.So(mux, convey.ShouldNotBeNil)

				server.Register(ctx, mux)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("GMTRADE_ADDR", "")
			defer func() { _ = os.Unsetenv("GMTRADE_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				ctx := context.Background()
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing service creation with invalid options", func() {
			convey.Convey("Then service should handle invalid options gracefully", func() {
				svc := app.New(
					app.WithAuditWorkerCount(0),
					app.WithAuditQueueSize(-1),
					app.WithStaleThreshold(0),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})
	})
}
