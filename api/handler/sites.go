package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/site"
)

// Sites returns a handler for GET /api/v1/sites.
func Sites() gin.HandlerFunc {
	example := models.Category{ID: "category", Slug: "{category}"}

	infos := make([]models.SiteInfo, 0, len(site.All()))
	for _, a := range site.All() {
		layout := a.Layout()
		infos = append(infos, models.SiteInfo{
			Name:       a.Name(),
			Pagination: layout.Pagination.String(),
			Extraction: layout.Extraction.String(),
			Consent:    layout.ConsentSelector != "",
			Weight:     layout.HasWeight(),
			ExampleURL: a.ListingURL(example, 1),
		})
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SitesResponse{Sites: infos})
	}
}
