// Spotify Web API response types, based on
// https://developer.spotify.com/documentation/web-api/reference/
package spotify

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// User represents the current user's profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}

// Artist represents an artist.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Images []Image  `json:"images"`
}

// Album represents an album (full or simplified).
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	Images      []Image  `json:"images"`
}

// Track represents a track.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
	Album   *Album   `json:"album"`
}

// Owner represents a playlist owner.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist represents a playlist as returned by browse and search endpoints.
type Playlist struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Owner Owner   `json:"owner"`
	Image []Image `json:"images"`
}

// AlbumPage is a paginated list of albums.
type AlbumPage struct {
	Items []Album `json:"items"`
	Next  *string `json:"next"`
}

// ArtistPage is a paginated list of artists.
type ArtistPage struct {
	Items []Artist `json:"items"`
	Next  *string  `json:"next"`
}

// TrackPage is a paginated list of tracks.
type TrackPage struct {
	Items []Track `json:"items"`
	Next  *string `json:"next"`
}

// PlaylistPage is a paginated list of playlists.
type PlaylistPage struct {
	Items []Playlist `json:"items"`
	Next  *string    `json:"next"`
}

// SearchResponse is the multi-type search envelope.
type SearchResponse struct {
	Albums  *AlbumPage    `json:"albums"`
	Artists *ArtistPage   `json:"artists"`
	Tracks  *TrackPage    `json:"tracks"`
	Lists   *PlaylistPage `json:"playlists"`
}

// RecommendationsResponse is the recommendations envelope.
type RecommendationsResponse struct {
	Tracks []Track `json:"tracks"`
}

// PlayHistoryItem is one entry of the recently-played feed.
type PlayHistoryItem struct {
	Track *Track `json:"track"`
}

// PlayHistoryPage is a paginated recently-played feed.
type PlayHistoryPage struct {
	Items []PlayHistoryItem `json:"items"`
}

// SavedAlbumItem is one entry of the saved-albums library.
type SavedAlbumItem struct {
	Album *Album `json:"album"`
}

// SavedAlbumPage is a paginated saved-albums list.
type SavedAlbumPage struct {
	Items []SavedAlbumItem `json:"items"`
}

// FollowedArtistsResponse is the followed-artists envelope (cursor paged).
type FollowedArtistsResponse struct {
	Artists ArtistPage `json:"artists"`
}

// RelatedArtistsResponse is the related-artists envelope.
type RelatedArtistsResponse struct {
	Artists []Artist `json:"artists"`
}

// PlaylistTrackItem is a track within a playlist context.
type PlaylistTrackItem struct {
	Track *Track `json:"track"`
}

// PlaylistTracksPage is a paginated playlist track listing.
type PlaylistTracksPage struct {
	Items []PlaylistTrackItem `json:"items"`
	Next  *string             `json:"next"`
}

// BrowsePlaylistsResponse wraps category, featured, and search playlist lists.
type BrowsePlaylistsResponse struct {
	Playlists *PlaylistPage `json:"playlists"`
}

// NewReleasesResponse is the browse new-releases envelope.
type NewReleasesResponse struct {
	Albums AlbumPage `json:"albums"`
}
