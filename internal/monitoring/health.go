package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthCheckFunc func(ctx context.Context) error

// HealthCheck is a named dependency probe together with its last result.
type HealthCheck struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`

	fn HealthCheckFunc
}

type healthChecker struct {
	mu     sync.RWMutex
	checks map[string]HealthCheck
}

var globalHealthChecker = &healthChecker{
	checks: make(map[string]HealthCheck),
}

// RegisterHealthCheck adds a named dependency probe run by RunHealthChecks.
func RegisterHealthCheck(name string, fn HealthCheckFunc) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks[name] = HealthCheck{Name: name, Status: "unknown", fn: fn}
}

// RunHealthChecks executes every registered probe with a short timeout and
// returns the refreshed results.
func RunHealthChecks() map[string]HealthCheck {
	globalHealthChecker.mu.RLock()
	pending := make([]HealthCheck, 0, len(globalHealthChecker.checks))
	for _, check := range globalHealthChecker.checks {
		pending = append(pending, check)
	}
	globalHealthChecker.mu.RUnlock()

	results := make(map[string]HealthCheck, len(pending))
	for _, check := range pending {
		check.Status = "healthy"
		check.Message = ""
		check.CheckedAt = time.Now()

		if check.fn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := check.fn(ctx); err != nil {
				check.Status = "unhealthy"
				check.Message = err.Error()
			}
			cancel()
		}

		results[check.Name] = check
	}

	globalHealthChecker.mu.Lock()
	for name, check := range results {
		globalHealthChecker.checks[name] = check
	}
	globalHealthChecker.mu.Unlock()

	return results
}

func allHealthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks()

		status := "healthy"
		code := http.StatusOK
		if !allHealthy(checks) {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks()

		if !allHealthy(checks) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		globalMetrics.mu.RLock()
		uptime := time.Since(globalMetrics.StartTime)
		globalMetrics.mu.RUnlock()

		c.JSON(http.StatusOK, gin.H{
			"status": "alive",
			"uptime": uptime.String(),
		})
	}
}
