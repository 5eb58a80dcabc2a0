package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/campus/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonRegistration = "registration-rate"
	rateLimitReasonAllocation   = "allocation-rate"
)

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		return 0, ErrInvalidRequest
	}
	return id, nil
}

// RegistrationRateLimit throttles exam registration writes per client. The
// limiter is advisory; when Redis is not configured requests pass through.
func (s *Server) RegistrationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.writeLimiter.AllowRegistration(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("registration rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, c.FullPath(), rateLimitReasonRegistration)
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, c.FullPath())
		c.Next()
	}
}

// AllocationRateLimit throttles hostel allocation writes per client.
func (s *Server) AllocationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.writeLimiter.AllowAllocation(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("allocation rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			s.obsMetrics.RecordRateLimitDenied(ctx, c.FullPath(), rateLimitReasonAllocation)
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, c.FullPath())
		c.Next()
	}
}
