package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/gofiber/fiber/v2"
)

func scrape(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), 5000)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	return string(raw)
}

func TestMiddlewareCountsRoutes(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/api/groups/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/groups/abc", nil), 5000)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}

	body := scrape(t, app)
	want := `split_the_bill_http_requests_total{method="GET",route="/api/groups/:id",status="204"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %q in scrape output:\n%s", want, body)
	}
	if !strings.Contains(body, "split_the_bill_http_request_duration_seconds_bucket") {
		t.Fatal("expected latency histogram in scrape output")
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error                               { return nil }

func TestPublisherCountsEvents(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Get("/metrics", m.Handler())

	recorder := &events.Recorder{}
	ok := m.Publisher(recorder)
	if err := ok.Publish(context.Background(), events.Event{Type: events.ExpenseCreated}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(recorder.Events()) != 1 {
		t.Fatal("expected event forwarded to the wrapped publisher")
	}

	broken := m.Publisher(failingPublisher{})
	if err := broken.Publish(context.Background(), events.Event{Type: events.GroupDeleted}); err == nil {
		t.Fatal("expected wrapped error")
	}

	body := scrape(t, app)
	if !strings.Contains(body, `split_the_bill_domain_events_total{type="expense.created"} 1`) {
		t.Fatalf("expected domain event counter, got:\n%s", body)
	}
	if !strings.Contains(body, `split_the_bill_domain_event_publish_failures_total{type="group.deleted"} 1`) {
		t.Fatalf("expected failure counter, got:\n%s", body)
	}
}
