package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/songbook/internal/apperr"
	"github.com/starford/songbook/internal/checksum"
	"github.com/starford/songbook/internal/index"
	"github.com/starford/songbook/internal/songservice"
)

// Notifier is told about songs rewritten through the API. Plain file
// changes are announced by the library watcher.
type Notifier interface {
	PublishTransposed(path, key string)
}

// Handler holds API route handlers.
type Handler struct {
	svc    *songservice.Service
	notify Notifier
}

// NewHandler creates a new Handler. notify may be nil.
func NewHandler(svc *songservice.Service, notify Notifier) *Handler {
	return &Handler{svc: svc, notify: notify}
}

// songPath extracts the song path from the URL (everything after the route prefix).
// Supports encoded slashes from OpenAPI clients (e.g. folk%2Fsong.md).
func songPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decode reads a JSON body into v and runs its Validate method.
func decode(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// writeServiceError maps service sentinels to status codes and logs the rest.
func writeServiceError(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("song already exists"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNoKey):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("song has no chords to take a key from"))
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListSongs handles GET /api/songs.
//
//	@Summary		List songs with optional pagination and filtering
//	@Tags			songs
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			key		query		string	false	"Filter by key, any spelling"
//	@Param			chord	query		string	false	"Filter by chord, any spelling"
//	@Param			sort	query		string	false	"Sort field"	Enums(title, artist, path, updated_at)
//	@Success		200		{object}	SongListResponse
//	@Security		BearerAuth
//	@Router			/songs [get]
func (h *Handler) ListSongs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListSongs(r.Context(), songservice.ListOptions{
		Limit:  limit,
		Offset: offset,
		Tag:    q.Get("tag"),
		Key:    q.Get("key"),
		Chord:  q.Get("chord"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeServiceError(w, "list songs", err)
		return
	}
	writeJSON(w, http.StatusOK, SongListResponse{Songs: items, Total: total})
}

// GetSong handles GET /api/songs/*. With transpose=1 (or semitones/to set)
// the song is returned transposed; nothing is written.
//
//	@Summary		Get a single song by path, optionally transposed
//	@Tags			songs
//	@Produce		json
//	@Param			path		path		string	true	"Song path"
//	@Param			transpose	query		bool	false	"Return a transposed view"
//	@Param			semitones	query		int		false	"Offset in semitones, -12..12"
//	@Param			spelling	query		string	false	"sharp or flat"
//	@Param			to			query		string	false	"Target key"
//	@Success		200			{object}	SongDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/songs/{path} [get]
func (h *Handler) GetSong(w http.ResponseWriter, r *http.Request) {
	path := songPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}

	q := r.URL.Query()
	if q.Get("transpose") != "" || q.Has("semitones") || q.Has("to") {
		h.getTransposed(w, r, path)
		return
	}

	song, err := h.svc.GetSong(r.Context(), path)
	if err != nil {
		writeServiceError(w, "get song", err, slog.String("path", path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(song.Checksum))
	writeJSON(w, http.StatusOK, song)
}

func (h *Handler) getTransposed(w http.ResponseWriter, r *http.Request, path string) {
	q := r.URL.Query()
	req := TransposeRequest{
		Spelling: q.Get("spelling"),
		To:       q.Get("to"),
	}
	if s := q.Get("semitones"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("semitones: must be an integer"))
			return
		}
		req.Semitones = n
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	out, err := h.svc.TransposeSong(r.Context(), path, h.transposeOptions(req))
	if err != nil {
		writeServiceError(w, "transpose song", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSong handles POST /api/songs.
//
//	@Summary		Create a new song
//	@Tags			songs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSongRequest	true	"Song to create"
//	@Success		201		{object}	SongDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/songs [post]
func (h *Handler) CreateSong(w http.ResponseWriter, r *http.Request) {
	var req CreateSongRequest
	if !decode(w, r, &req) {
		return
	}
	song, err := h.svc.CreateSong(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeServiceError(w, "create song", err, slog.String("path", req.Path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(song.Checksum))
	writeJSON(w, http.StatusCreated, song)
}

// UpdateSong handles PUT /api/songs/*.
//
//	@Summary		Update a song with optimistic concurrency
//	@Tags			songs
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Song path"
//	@Param			If-Match	header		string				false	"Checksum or ETag for optimistic concurrency"
//	@Param			body		body		UpdateSongRequest	true	"Updated content"
//	@Success		200			{object}	SongDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/songs/{path} [put]
func (h *Handler) UpdateSong(w http.ResponseWriter, r *http.Request) {
	path := songPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateSongRequest
	if !decode(w, r, &req) {
		return
	}

	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))
	song, err := h.svc.UpdateSong(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeServiceError(w, "update song", err, slog.String("path", path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(song.Checksum))
	writeJSON(w, http.StatusOK, song)
}

// DeleteSong handles DELETE /api/songs/*.
//
//	@Summary		Delete a song
//	@Tags			songs
//	@Param			path	path	string	true	"Song path"
//	@Success		204		"Song deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/songs/{path} [delete]
func (h *Handler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	path := songPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteSong(r.Context(), path); err != nil {
		writeServiceError(w, "delete song", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveTransposed handles POST /api/transpose/*.
//
//	@Summary		Transpose a stored song and write it back
//	@Tags			transpose
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Song path"
//	@Param			If-Match	header		string				false	"Checksum or ETag for optimistic concurrency"
//	@Param			body		body		TransposeRequest	true	"Offset or target key"
//	@Success		200			{object}	SongDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transpose/{path} [post]
func (h *Handler) SaveTransposed(w http.ResponseWriter, r *http.Request) {
	path := songPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req TransposeRequest
	if !decode(w, r, &req) {
		return
	}

	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))
	song, err := h.svc.SaveTransposed(r.Context(), path, h.transposeOptions(req), ifMatch)
	if err != nil {
		writeServiceError(w, "save transposed", err, slog.String("path", path))
		return
	}
	if h.notify != nil {
		h.notify.PublishTransposed(path, song.Key)
	}
	w.Header().Set("ETag", checksum.ETag(song.Checksum))
	writeJSON(w, http.StatusOK, song)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across titles, artists, lyrics and tags
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
