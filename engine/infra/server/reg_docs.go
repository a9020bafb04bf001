package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

type routeDoc struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// setupDocs serves the registered route table at /docs.
func setupDocs(router *gin.Engine) {
	router.GET("/docs", func(c *gin.Context) {
		routes := router.Routes()
		docs := make([]routeDoc, 0, len(routes))
		for _, r := range routes {
			docs = append(docs, routeDoc{Method: r.Method, Path: r.Path})
		}
		sort.Slice(docs, func(i, j int) bool {
			if docs[i].Path != docs[j].Path {
				return docs[i].Path < docs[j].Path
			}
			return docs[i].Method < docs[j].Method
		})
		c.JSON(http.StatusOK, gin.H{
			"data":    gin.H{"routes": docs},
			"message": "Success",
		})
	})
}
