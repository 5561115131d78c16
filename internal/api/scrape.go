package api

import (
	"encoding/json"
	"net/http"

	"github.com/tlane/browserpilot/internal/model"
)

// Canned extraction tasks for the convenience endpoints. The schemas ride
// along as structured_output so callers get predictable JSON back.
const (
	pricingTask = "Find all pricing information on this page. Extract tier names, prices, billing periods, and feature lists. Return as structured JSON."

	productsTask = "Extract all product information visible on this page. Get product names, prices, images URLs, and descriptions. Return as JSON array."
)

var (
	pricingSchema = json.RawMessage(`{"tiers":[{"name":"string","price":"string","billing_period":"string","features":["string"]}]}`)

	productsSchema = json.RawMessage(`{"products":[{"name":"string","price":"string","image_url":"string","description":"string"}]}`)
)

// handleScrapePricing queues a pricing extraction task for the given URL.
func (s *Server) handleScrapePricing(w http.ResponseWriter, r *http.Request) {
	url, ok := s.scrapeURL(w, r)
	if !ok {
		return
	}

	s.submitAsync(w, r, model.TaskRequest{
		Task:             pricingTask,
		URL:              url,
		StructuredOutput: pricingSchema,
	})
}

// handleScrapeProducts queues a product catalog extraction task for the given URL.
func (s *Server) handleScrapeProducts(w http.ResponseWriter, r *http.Request) {
	url, ok := s.scrapeURL(w, r)
	if !ok {
		return
	}

	s.submitAsync(w, r, model.TaskRequest{
		Task:             productsTask,
		URL:              url,
		StructuredOutput: productsSchema,
	})
}

func (s *Server) scrapeURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, http.StatusBadRequest, "url query parameter is required")
		return "", false
	}
	return url, true
}
