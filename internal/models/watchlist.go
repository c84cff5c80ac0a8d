package models

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// MediaType distinguishes movies from TV shows in the metadata catalog.
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

// WatchStatus is the user's progress on a saved title.
type WatchStatus string

const (
	WantToWatch WatchStatus = "want_to_watch"
	Watching    WatchStatus = "watching"
	Watched     WatchStatus = "watched"
)

// Valid reports whether s is a known status.
func (s WatchStatus) Valid() bool {
	return s == WantToWatch || s == Watching || s == Watched
}

// WatchlistItem is the request payload for watchlist mutations.
type WatchlistItem struct {
	MediaID   int         `json:"movie_id"`
	MediaType MediaType   `json:"media_type,omitempty"`
	Title     string      `json:"title,omitempty"`
	Status    WatchStatus `json:"status,omitempty"`
}

// WatchlistPath is the collection endpoint of the watchlist API.
const WatchlistPath = "/api/watchlist"

// AddAction builds the POST that saves item to the watchlist.
func (item WatchlistItem) AddAction() (ActionInput, error) {
	if item.MediaID <= 0 {
		return ActionInput{}, fmt.Errorf("media id is required")
	}
	if item.MediaType != Movie && item.MediaType != TV {
		return ActionInput{}, fmt.Errorf("media type must be %q or %q", Movie, TV)
	}
	if item.Status == "" {
		item.Status = WantToWatch
	}
	if !item.Status.Valid() {
		return ActionInput{}, fmt.Errorf("unknown watch status %q", item.Status)
	}
	return item.action(AddToWatchlist, http.MethodPost, WatchlistPath)
}

// UpdateAction builds the PUT that changes the watch status of a saved item.
func (item WatchlistItem) UpdateAction() (ActionInput, error) {
	if item.MediaID <= 0 {
		return ActionInput{}, fmt.Errorf("media id is required")
	}
	if !item.Status.Valid() {
		return ActionInput{}, fmt.Errorf("unknown watch status %q", item.Status)
	}
	return item.action(UpdateWatchlist, http.MethodPut, itemPath(item.MediaID))
}

// DeleteAction builds the DELETE that removes a saved item.
func (item WatchlistItem) DeleteAction() (ActionInput, error) {
	if item.MediaID <= 0 {
		return ActionInput{}, fmt.Errorf("media id is required")
	}
	return ActionInput{Type: DeleteFromWatchlist, Method: http.MethodDelete, URL: itemPath(item.MediaID)}, nil
}

func (item WatchlistItem) action(t ActionType, method, path string) (ActionInput, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return ActionInput{}, fmt.Errorf("failed to encode watchlist item: %w", err)
	}
	return ActionInput{Type: t, Method: method, URL: path, Body: string(body)}, nil
}

func itemPath(mediaID int) string {
	return WatchlistPath + "/" + url.PathEscape(strconv.Itoa(mediaID))
}
