package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/breakerbox/config"
	"github.com/angeloszaimis/breakerbox/internal/handler"
	"github.com/angeloszaimis/breakerbox/internal/registry"
)

func TestMain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Main Suite")
}

var _ = Describe("resolveDeclarations", func() {
	var (
		buf bytes.Buffer
		log *slog.Logger
	)

	BeforeEach(func() {
		buf.Reset()
		log = slog.New(slog.NewTextHandler(&buf, nil))
	})

	It("should resolve well-formed declarations", func() {
		decls := resolveDeclarations([]config.BreakerConfig{
			{Name: "billing-api", MaxFailures: 5, FailureWindow: "60s", ResetWindow: "30s"},
		}, log)

		Expect(decls).To(HaveLen(1))
		Expect(decls[0].Name).To(Equal("billing-api"))
		Expect(decls[0].Config.FailureWindow).To(Equal(60 * time.Second))
		Expect(decls[0].Config.ResetWindow).To(Equal(30 * time.Second))
	})

	It("should skip entries with unparseable windows and keep the rest", func() {
		decls := resolveDeclarations([]config.BreakerConfig{
			{Name: "bad-fw", MaxFailures: 5, FailureWindow: "soon", ResetWindow: "30s"},
			{Name: "bad-rw", MaxFailures: 5, FailureWindow: "60s", ResetWindow: "later"},
			{Name: "good", MaxFailures: 5, FailureWindow: "60s", ResetWindow: "30s"},
		}, log)

		Expect(decls).To(HaveLen(1))
		Expect(decls[0].Name).To(Equal("good"))
		Expect(buf.String()).To(ContainSubstring("skipping breaker declaration"))
	})
})

var _ = Describe("initializeBoxes", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		log    *slog.Logger
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		log = slog.Default()
	})

	AfterEach(func() {
		cancel()
	})

	It("should always start the default box", func() {
		cfg := &config.Config{
			Monitor: config.MonitorConfig{Interval: "1s"},
			Boxes: []config.BoxConfig{
				{Name: "payments"},
			},
		}

		boxes, err := initializeBoxes(ctx, cfg, log, nil)
		Expect(err).NotTo(HaveOccurred())
		defer stopAll(boxes)

		Expect(boxNames(boxes)).To(ConsistOf("payments", registry.DefaultBox))
	})

	It("should not duplicate a declared default box", func() {
		cfg := &config.Config{
			Monitor: config.MonitorConfig{Interval: "1s"},
			Boxes: []config.BoxConfig{
				{Name: registry.DefaultBox, Breakers: []config.BreakerConfig{
					{Name: "billing-api", MaxFailures: 5, FailureWindow: "60s", ResetWindow: "30s"},
				}},
			},
		}

		boxes, err := initializeBoxes(ctx, cfg, log, nil)
		Expect(err).NotTo(HaveOccurred())
		defer stopAll(boxes)

		Expect(boxes).To(HaveLen(1))
		Expect(boxes[0].Registered()).To(HaveKey("billing-api"))
	})

	It("should fail on an unparseable monitor interval", func() {
		cfg := &config.Config{
			Monitor: config.MonitorConfig{Interval: "whenever"},
		}

		_, err := initializeBoxes(ctx, cfg, log, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("setupRouter", func() {
	It("should expose health and metrics endpoints", func() {
		box := registry.Start("router-test")
		defer box.Stop()

		mux := setupRouter(handler.NewBreakerHandler(slog.Default(), []*registry.Registry{box}))

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boxes/router-test/status", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})

func stopAll(boxes []*registry.Registry) {
	for _, b := range boxes {
		b.Stop()
	}
}

func boxNames(boxes []*registry.Registry) []string {
	names := make([]string, 0, len(boxes))
	for _, b := range boxes {
		names = append(names, b.Box())
	}
	return names
}
