package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthStatus struct {
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Uptime      string    `json:"uptime"`
	Version     string    `json:"version"`
}

var (
	healthStatus = HealthStatus{
		Status:      "ok",
		LastChecked: time.Now(),
		Uptime:      "0s",
		Version:     "1.0.0",
	}
	healthMutex      sync.RWMutex
	startTime        = time.Now()
	lastResponse     []byte
	lastResponseTime time.Time
	cacheDuration    = 5 * time.Second
)

// HealthCheckMiddleware serves a cached health snapshot.
func HealthCheckMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		healthMutex.RLock()
		cached := lastResponse
		fresh := cached != nil && time.Since(lastResponseTime) < cacheDuration
		healthMutex.RUnlock()

		if fresh {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}

		healthMutex.Lock()
		// Another request may have refreshed the cache between the locks.
		if lastResponse == nil || time.Since(lastResponseTime) >= cacheDuration {
			healthStatus.Uptime = time.Since(startTime).String()
			healthStatus.LastChecked = time.Now()

			response, _ := json.Marshal(healthStatus)
			lastResponse = response
			lastResponseTime = time.Now()
		}
		cached = lastResponse
		healthMutex.Unlock()

		c.Data(http.StatusOK, "application/json", cached)
	}
}

// UpdateHealthStatus flips the reported status and invalidates the cache.
func UpdateHealthStatus(status string) {
	healthMutex.Lock()
	defer healthMutex.Unlock()

	healthStatus.Status = status
	healthStatus.LastChecked = time.Now()
	lastResponse = nil
}

func SetVersion(version string) {
	healthMutex.Lock()
	defer healthMutex.Unlock()

	healthStatus.Version = version
	lastResponse = nil
}
