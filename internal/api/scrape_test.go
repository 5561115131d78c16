package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tlane/browserpilot/internal/model"
)

func TestScrapePricing(t *testing.T) {
	driver := &stubDriver{payload: `{"tiers":[]}`}
	srv := newTestServer(t, driver)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scrape-pricing?url=https://example.com/pricing", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /scrape-pricing: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	var ack runTaskResponse
	json.NewDecoder(resp.Body).Decode(&ack)

	final := waitForTerminal(t, ts.URL, ack.TaskID)
	if final.Status != model.StatusCompleted {
		t.Fatalf("final status = %q, want completed", final.Status)
	}

	// The canned task, URL prefix, and schema all reach the driver.
	instruction := driver.instruction()
	if !strings.HasPrefix(instruction, "Go to https://example.com/pricing. Then: Find all pricing information") {
		t.Errorf("instruction = %q, want canned pricing task prefixed with the URL", instruction)
	}
	if !strings.Contains(instruction, "billing_period") {
		t.Errorf("instruction = %q, want pricing schema appended", instruction)
	}

	if final.Request.URL != "https://example.com/pricing" {
		t.Errorf("recorded url = %q, want the query parameter", final.Request.URL)
	}
}

func TestScrapeProducts(t *testing.T) {
	driver := &stubDriver{payload: `{"products":[]}`}
	srv := newTestServer(t, driver)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scrape-products?url=https://shop.example.com", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /scrape-products: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	var ack runTaskResponse
	json.NewDecoder(resp.Body).Decode(&ack)

	final := waitForTerminal(t, ts.URL, ack.TaskID)
	if final.Status != model.StatusCompleted {
		t.Fatalf("final status = %q, want completed", final.Status)
	}

	instruction := driver.instruction()
	if !strings.HasPrefix(instruction, "Go to https://shop.example.com. Then: Extract all product information") {
		t.Errorf("instruction = %q, want canned products task prefixed with the URL", instruction)
	}
	if !strings.Contains(instruction, "image_url") {
		t.Errorf("instruction = %q, want products schema appended", instruction)
	}
}

func TestScrapeMissingURL(t *testing.T) {
	srv := newTestServer(t, &stubDriver{payload: "ok"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/scrape-pricing", "/scrape-products"} {
		resp, err := http.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", path, resp.StatusCode)
		}
	}
}
