package handlers

import (
	"net/http"

	"teammate/server/modules/submission/application/services"
	"teammate/server/seedwork/domain"

	"github.com/gin-gonic/gin"
)

// ResultsHandlers exposes the Results Store's read surface:
// `/results/submission/{key}`, `.../raw`, `/results/submissions`,
// `DELETE /results/submission/{key}`.
type ResultsHandlers struct {
	store *services.ResultsStore
}

func NewResultsHandlers(store *services.ResultsStore) *ResultsHandlers {
	return &ResultsHandlers{store: store}
}

func (h *ResultsHandlers) GetTransformed(c *gin.Context) {
	key := c.Param("key")
	results, err := h.store.GetTransformed(key)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission_key": key, "results": results})
}

func (h *ResultsHandlers) GetRaw(c *gin.Context) {
	key := c.Param("key")
	agg, err := h.store.GetRaw(key)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (h *ResultsHandlers) ListSubmissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"submissions": h.store.ListAll()})
}

func (h *ResultsHandlers) DeleteSubmission(c *gin.Context) {
	key := c.Param("key")
	if !h.store.Has(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown submission: " + key})
		return
	}
	h.store.Clear(key)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func respondStoreError(c *gin.Context, err error) {
	if de, ok := err.(*domain.DomainError); ok && de.Code == domain.CodeNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": de.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
