// ABOUTME: HTTP surface for search, transcription and health checks
// ABOUTME: Thin gin handlers over the corpus service and media pipeline
package server

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cevr/bible-tools/internal/corpus"
	"github.com/cevr/bible-tools/internal/media"
)

const projectURL = "https://cvr.im/bible-tools"

// Searcher answers corpus queries and reports load liveness.
type Searcher interface {
	Search(ctx context.Context, query string) (corpus.SearchResult, error)
	Loading() bool
}

// Transcriber runs the video transcription pipeline.
type Transcriber interface {
	SummaryTranscription(ctx context.Context, url string) (media.Transcription, error)
}

// New builds the gin engine with all routes wired.
func New(searcher Searcher, transcriber Transcriber) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, projectURL)
	})

	router.GET("/health", handleHealth(searcher))
	router.GET("/search", handleSearch(searcher))
	router.GET("/transcribe", handleTranscribe(transcriber))

	return router
}

func handleHealth(searcher Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if searcher.Loading() {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type searchQuery struct {
	Q string `form:"q" binding:"required"`
}

func handleSearch(searcher Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query searchQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not search"})
			return
		}

		result, err := searcher.Search(c.Request.Context(), query.Q)
		if err != nil {
			log.Printf("search %q failed: %v", query.Q, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not search"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

type transcribeQuery struct {
	URL string `form:"url" binding:"required,url"`
}

func handleTranscribe(transcriber Transcriber) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query transcribeQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "Could not transcribe",
				"error":   err.Error(),
			})
			return
		}

		result, err := transcriber.SummaryTranscription(c.Request.Context(), query.URL)
		if err != nil {
			log.Printf("transcribe %q failed: %v", query.URL, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"message": "Could not transcribe",
				"error":   err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
