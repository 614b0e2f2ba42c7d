package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spKnowTech/plantpal-app/internal/cache"
	"github.com/spKnowTech/plantpal-app/internal/worker"
)

// CacheHandler exposes the operational cache endpoints: stats, targeted
// eviction and health, plus the background queue depths.
type CacheHandler struct {
	Cache    cache.Cache
	JobQueue *worker.JobQueue
}

func NewCacheHandler(cacheInstance cache.Cache, jobQueue *worker.JobQueue) *CacheHandler {
	return &CacheHandler{Cache: cacheInstance, JobQueue: jobQueue}
}

// GetCacheStats returns cache hit/miss counters and queue sizes.
// GET /cache/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	stats := gin.H{}

	if h.Cache != nil {
		stats["cache"] = h.Cache.Stats()

		// Snapshots written by the scheduled maintenance jobs.
		var overdue int64
		if err := h.Cache.Get("stats:overdue_tasks", &overdue); err == nil {
			stats["overdue_tasks"] = overdue
		}
		var depths map[string]int64
		if err := h.Cache.Get("stats:queues", &depths); err == nil {
			stats["queue_snapshot"] = depths
		}
	}

	if h.JobQueue != nil {
		queueSizes := gin.H{}
		for _, queue := range []string{worker.AnalysisQueue, worker.RetryQueue, worker.DeadQueue} {
			if size, err := h.JobQueue.GetQueueSize(queue); err == nil {
				queueSizes[queue] = size
			}
		}
		stats["queue_sizes"] = queueSizes
	}

	c.JSON(http.StatusOK, stats)
}

// EvictCacheKey evicts a specific cache key or, with a trailing/leading
// wildcard, a pattern.
// DELETE /cache/keys/:key
func (h *CacheHandler) EvictCacheKey(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key parameter is required"})
		return
	}

	if h.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache is not initialized"})
		return
	}

	if containsWildcard(key) {
		if err := h.Cache.DeletePattern(key); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evict cache pattern"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cache pattern evicted", "pattern": key})
		return
	}

	if err := h.Cache.Delete(key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to evict cache key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cache key evicted", "key": key})
}

// GetCacheHealth reports whether the cache backend is reachable.
// GET /cache/health
func (h *CacheHandler) GetCacheHealth(c *gin.Context) {
	if h.Cache == nil {
		c.JSON(http.StatusOK, gin.H{"status": "unavailable", "healthy": false})
		return
	}

	if err := h.Cache.Health(); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "degraded", "healthy": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy", "healthy": true})
}

func containsWildcard(s string) bool {
	return len(s) > 0 && (s[len(s)-1] == '*' || s[0] == '*')
}
