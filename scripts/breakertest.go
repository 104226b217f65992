// Breakertest exercises a running breakerbox instance end to end: it
// registers a breaker over the admin API, trips it with failures, resets it,
// toggles disable/enable, and checks the Prometheus metrics endpoint.
//
// Usage:
//
//	go run breakertest.go -url http://localhost:8080 -box default
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Breakerbox admin API URL")
		box         = flag.String("box", "default", "Box to test against")
		breaker     = flag.String("breaker", "breakertest-svc", "Breaker name to register")
		maxFailures = flag.Int("max-failures", 3, "Failures before the breaker trips")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	base := fmt.Sprintf("%s/boxes/%s", *baseURL, *box)

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║               BREAKERBOX END-TO-END TEST                       ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()

	// PHASE 1: Register a breaker
	fmt.Println(colorBlue + "━━━ PHASE 1: Registration ━━━" + colorReset)
	fmt.Printf("Registering breaker %q in box %q...\n", *breaker, *box)

	body, _ := json.Marshal(map[string]interface{}{
		"name":           *breaker,
		"max_failures":   *maxFailures,
		"failure_window": "60s",
		"reset_window":   "30s",
	})

	resp, err := client.Post(base+"/breakers", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println(colorRed + "  ✗ Is breakerbox running? " + err.Error() + colorReset)
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		fmt.Printf(colorRed+"  ✗ Registration failed: HTTP %d\n"+colorReset, resp.StatusCode)
		os.Exit(1)
	}
	expectStatus(client, base, *breaker, "ok")
	fmt.Println(colorGreen + "  ✓ Registered and reporting ok" + colorReset)
	fmt.Println()

	// PHASE 2: Trip it
	fmt.Println(colorBlue + "━━━ PHASE 2: Trip on repeated failures ━━━" + colorReset)
	for i := 1; i < *maxFailures; i++ {
		recordFailure(client, base, *breaker)
		if st := getStatus(client, base, *breaker); st != "ok" {
			fmt.Printf(colorRed+"  ✗ Tripped after only %d failures (status=%s)\n"+colorReset, i, st)
			os.Exit(1)
		}
		fmt.Printf("  Failure %d/%d recorded, still ok\n", i, *maxFailures)
	}

	recordFailure(client, base, *breaker)
	fmt.Printf("  Failure %d/%d recorded\n", *maxFailures, *maxFailures)
	expectStatus(client, base, *breaker, "tripped")
	fmt.Println(colorGreen + "  ✓ Breaker tripped on the configured failure count" + colorReset)
	fmt.Println()

	// PHASE 3: Manual reset
	fmt.Println(colorBlue + "━━━ PHASE 3: Manual reset ━━━" + colorReset)
	post(client, base+"/breakers/"+*breaker+"/reset")
	expectStatus(client, base, *breaker, "ok")
	fmt.Println(colorGreen + "  ✓ Reset restored availability" + colorReset)
	fmt.Println()

	// PHASE 4: Disable / enable
	fmt.Println(colorBlue + "━━━ PHASE 4: Disable and enable ━━━" + colorReset)
	post(client, base+"/breakers/"+*breaker+"/disable")
	expectStatus(client, base, *breaker, "tripped")
	fmt.Println("  Disabled breaker reports tripped")

	// A reset must not revive a disabled breaker.
	post(client, base+"/breakers/"+*breaker+"/reset")
	expectStatus(client, base, *breaker, "tripped")
	fmt.Println("  Reset ignored while disabled")

	post(client, base+"/breakers/"+*breaker+"/enable")
	expectStatus(client, base, *breaker, "ok")
	fmt.Println(colorGreen + "  ✓ Enable restored availability" + colorReset)
	fmt.Println()

	// PHASE 5: Metrics
	fmt.Println(colorBlue + "━━━ PHASE 5: Metrics ━━━" + colorReset)
	metricsBody, err := fetch(client, *baseURL+"/metrics")
	if err != nil {
		fmt.Printf(colorYellow+"  Could not fetch metrics: %v\n"+colorReset, err)
	} else {
		for _, metric := range []string{
			"breakerbox_failures_total",
			"breakerbox_trips_total",
			"breakerbox_resets_total",
			"breakerbox_registered_breakers",
		} {
			if strings.Contains(metricsBody, metric) {
				fmt.Printf(colorGreen+"  ✓ %s present\n"+colorReset, metric)
			} else {
				fmt.Printf(colorYellow+"  ⚠ %s missing\n"+colorReset, metric)
			}
		}
	}
	fmt.Println()

	// Cleanup
	req, _ := http.NewRequest(http.MethodDelete, base+"/breakers/"+*breaker, nil)
	if resp, err := client.Do(req); err == nil {
		resp.Body.Close()
	}

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                    TEST COMPLETE                               ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()
	fmt.Println("Key behaviors verified:")
	fmt.Println("  1. Registration and status reporting")
	fmt.Println("  2. Trip on the configured failure count")
	fmt.Println("  3. Manual reset")
	fmt.Println("  4. Disable surfaces as tripped and ignores reset")
	fmt.Println("  5. Prometheus metrics exposure")
}

func recordFailure(client *http.Client, base, breaker string) {
	post(client, base+"/breakers/"+breaker+"/failure")
}

func post(client *http.Client, url string) {
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		fmt.Printf(colorRed+"  ✗ POST %s: %v\n"+colorReset, url, err)
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		fmt.Printf(colorRed+"  ✗ POST %s: HTTP %d\n"+colorReset, url, resp.StatusCode)
		os.Exit(1)
	}
}

func getStatus(client *http.Client, base, breaker string) string {
	body, err := fetch(client, base+"/breakers/"+breaker+"/status")
	if err != nil {
		fmt.Printf(colorRed+"  ✗ Status check failed: %v\n"+colorReset, err)
		os.Exit(1)
	}

	var st struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		fmt.Printf(colorRed+"  ✗ Bad status payload: %v\n"+colorReset, err)
		os.Exit(1)
	}
	return st.Status
}

func expectStatus(client *http.Client, base, breaker, want string) {
	if got := getStatus(client, base, breaker); got != want {
		fmt.Printf(colorRed+"  ✗ Expected status %q, got %q\n"+colorReset, want, got)
		os.Exit(1)
	}
}

func fetch(client *http.Client, url string) (string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
