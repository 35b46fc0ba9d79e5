package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/storage"
)

type createListingRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"gte=0"`
	Category    string  `json:"category"`
}

type updateListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	Category    *string  `json:"category"`
}

type listingResponse struct {
	*storage.Listing
	Images []storage.ImageAsset `json:"images"`
}

func (h *handler) createListing(c *gin.Context) {
	var req createListingRequest
	// An empty body creates a listing with placeholder values.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Validation("invalid request body", err))
			return
		}
	}

	l := &storage.Listing{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Price:       req.Price,
		Category:    strings.TrimSpace(req.Category),
	}
	if err := h.Listings.CreateListing(l); err != nil {
		respondError(c, apperr.Storage("failed to create listing", err))
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *handler) listListings(c *gin.Context) {
	listings, err := h.Listings.ListListings()
	if err != nil {
		respondError(c, apperr.Storage("failed to list listings", err))
		return
	}
	if listings == nil {
		listings = []storage.Listing{}
	}
	c.JSON(http.StatusOK, listings)
}

func (h *handler) getListing(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	l, err := h.Listings.GetListing(id)
	if err != nil {
		respondError(c, apperr.Storage("failed to load listing", err))
		return
	}
	if l == nil {
		respondError(c, apperr.NotFound("listing not found"))
		return
	}
	images, err := h.Listings.ListImages(id)
	if err != nil {
		respondError(c, apperr.Storage("failed to load images", err))
		return
	}
	if images == nil {
		images = []storage.ImageAsset{}
	}
	c.JSON(http.StatusOK, listingResponse{Listing: l, Images: images})
}

func (h *handler) updateListing(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body", err))
		return
	}

	l, err := h.Listings.UpdateListing(id, storage.ListingUpdate{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
	})
	if err != nil {
		respondError(c, apperr.Storage("failed to update listing", err))
		return
	}
	if l == nil {
		respondError(c, apperr.NotFound("listing not found"))
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *handler) deleteListing(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Pipeline.DeleteListing(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
