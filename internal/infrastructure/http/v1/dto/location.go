package dto

import (
	"fabrica/internal/domain/catalogs/location"
)

// CreateLocationRequest is the payload for location creation.
type CreateLocationRequest struct {
	Code     string  `json:"code" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parentId"`
	Address  string  `json:"address"`
}

// LocationResponse is the location representation.
type LocationResponse struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	ParentID     *string `json:"parentId,omitempty"`
	Address      string  `json:"address,omitempty"`
	DeletionMark bool    `json:"deletionMark"`
	Version      int     `json:"version"`
}

// FromLocation maps a location to its response.
func FromLocation(loc *location.Location) LocationResponse {
	resp := LocationResponse{
		ID:           loc.ID.String(),
		Code:         loc.Code,
		Name:         loc.Name,
		Address:      loc.Address,
		DeletionMark: loc.DeletionMark,
		Version:      loc.Version,
	}
	if loc.ParentID != nil {
		s := loc.ParentID.String()
		resp.ParentID = &s
	}
	return resp
}

// FromLocations maps a slice of locations.
func FromLocations(locs []*location.Location) []LocationResponse {
	out := make([]LocationResponse, 0, len(locs))
	for _, loc := range locs {
		out = append(out, FromLocation(loc))
	}
	return out
}
