// Package grafana checks that the metrics dashboard is reachable after a
// recompute. Failures are reported to the log and never fail the run: the
// dashboard is a downstream consumer, not a dependency.
package grafana

import (
	"errors"
	"fmt"
	"log"
	"time"

	"doratrack/internal/env"

	"github.com/valyala/fasthttp"
)

var client = &fasthttp.Client{
	ReadTimeout:  10 * time.Second,
	WriteTimeout: 10 * time.Second,
}

// CheckDashboard verifies the configured dashboard UID exists in Grafana.
// Missing configuration is treated as "no dashboard to check".
func CheckDashboard() {
	if env.GRAFANA_URL == "" || env.GRAFANA_API_KEY == "" {
		log.Print("grafana config incomplete, skipping dashboard check")
		return
	}

	if err := check(env.GRAFANA_URL, env.GRAFANA_API_KEY, env.GRAFANA_DASHBOARD_UID); err != nil {
		log.Printf("grafana dashboard check failed: %v", err)
		return
	}

	log.Printf("grafana dashboard %q is reachable", env.GRAFANA_DASHBOARD_UID)
}

func check(baseURL, apiKey, dashboardUID string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/api/dashboards/uid/%s", baseURL, dashboardUID))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.SetContentType("application/json")

	if err := client.Do(req, resp); err != nil {
		return err
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
		return nil
	case fasthttp.StatusUnauthorized:
		return errors.New("unauthorized, check GRAFANA_API_KEY")
	case fasthttp.StatusNotFound:
		return fmt.Errorf("dashboard %q not found", dashboardUID)
	default:
		return fmt.Errorf("unexpected response %d", resp.StatusCode())
	}
}
