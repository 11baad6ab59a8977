package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jhmac/sneebly/internal/probe"
)

// hostCollector implements probe.Collector by calling three JSON endpoints
// the host app exposes for exactly this purpose: sneebly never crawls,
// checks integrations, or supervises the process itself, it only decodes
// whatever the host's own introspection surface hands back.
type hostCollector struct {
	baseURL string
	client  *http.Client
}

// newHostCollector returns nil when baseURL is empty: every caller that
// wires a probe.Collector (elon.Cycle, heartbeat.Orchestrator) already
// treats a nil Collector as "skip this step", so an unconfigured host URL
// degrades to those steps being skipped rather than failing construction.
func newHostCollector(baseURL string) probe.Collector {
	if baseURL == "" {
		return nil
	}
	return &hostCollector{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (c *hostCollector) Crawl(pages []string) (probe.CrawlResult, error) {
	var result probe.CrawlResult
	body := struct {
		Pages []string `json:"pages"`
	}{Pages: pages}
	if err := c.postJSON("/sneebly/probe/crawl", body, &result); err != nil {
		return probe.CrawlResult{}, err
	}
	return result, nil
}

func (c *hostCollector) CheckIntegrations() (probe.IntegrationHealth, error) {
	var result probe.IntegrationHealth
	if err := c.getJSON("/sneebly/probe/integrations", &result); err != nil {
		return probe.IntegrationHealth{}, err
	}
	return result, nil
}

func (c *hostCollector) ProbeRuntime(healthURL string) (probe.RuntimeVerdict, error) {
	var result probe.RuntimeVerdict
	endpoint := "/sneebly/probe/runtime"
	if healthURL != "" {
		endpoint += "?health=" + url.QueryEscape(healthURL)
	}
	if err := c.getJSON(endpoint, &result); err != nil {
		return probe.RuntimeVerdict{}, err
	}
	return result, nil
}

func (c *hostCollector) getJSON(path string, out interface{}) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeProbeResponse(resp, out)
}

func (c *hostCollector) postJSON(path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", path, err)
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeProbeResponse(resp, out)
}

func decodeProbeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("host probe endpoint returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
