package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetIntegrityReport(c *gin.Context) {
	report, err := s.integritySvc.RunCheck(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) RunIntegrityRecovery(c *gin.Context) {
	repaired, err := s.integritySvc.PerformAutoRecovery(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"repaired": repaired}})
}

func (s *Server) RunOrphanCleanup(c *gin.Context) {
	removed, err := s.integritySvc.CleanupOrphans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": removed}})
}

type integritySchedule struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) GetIntegritySchedule(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": integritySchedule{
		Enabled: s.integritySvc.IsScheduledEnabled(),
	}})
}

func (s *Server) UpdateIntegritySchedule(c *gin.Context) {
	var req integritySchedule
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.integritySvc.SetScheduledEnabled(req.Enabled)

	c.JSON(http.StatusOK, gin.H{"data": integritySchedule{
		Enabled: s.integritySvc.IsScheduledEnabled(),
	}})
}
