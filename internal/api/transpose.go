package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/session"
	"github.com/starford/songbook/internal/songservice"
)

// spelling resolves request spelling text, empty meaning the service default.
func (h *Handler) spelling(text string) music.Spelling {
	if text == "" {
		return h.svc.DefaultSpelling()
	}
	s, _ := music.ParseSpelling(text)
	return s
}

// transposeOptions converts a validated request into service options.
func (h *Handler) transposeOptions(req TransposeRequest) songservice.TransposeOptions {
	sp := h.spelling(req.Spelling)
	opts := songservice.TransposeOptions{Semitones: req.Semitones, Spelling: &sp}
	if req.To != "" {
		k, _ := music.ParseKey(req.To)
		opts.Target = &k.Root
	}
	return opts
}

// Transpose handles POST /api/transpose.
//
//	@Summary		Transpose chord text
//	@Tags			transpose
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TransposeRequest	true	"Text and offset or target key"
//	@Success		200		{object}	TransposeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transpose [post]
func (h *Handler) Transpose(w http.ResponseWriter, r *http.Request) {
	var req TransposeRequest
	if !decode(w, r, &req) {
		return
	}

	sess := session.New(h.spelling(req.Spelling))
	if req.To != "" {
		k, _ := music.ParseKey(req.To)
		if _, ok := sess.ToKey(req.Text, k.Root); !ok {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody("text has no chords to take a key from"))
			return
		}
	} else {
		sess.SetOffset(req.Semitones)
	}

	v := sess.Render(req.Text)
	writeJSON(w, http.StatusOK, TransposeResponse{
		Text:        v.Text,
		OriginalKey: v.OriginalKey,
		Key:         v.CurrentKey,
		Camelot:     v.Camelot,
		Semitones:   v.Offset,
		Spelling:    v.Spelling.String(),
	})
}

// DetectKey handles POST /api/key.
//
//	@Summary		Detect the key of chord text from its first chord
//	@Tags			transpose
//	@Accept			json
//	@Produce		json
//	@Param			body	body		KeyRequest	true	"Chord text"
//	@Success		200		{object}	KeyResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/key [post]
func (h *Handler) DetectKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if !decode(w, r, &req) {
		return
	}
	resp := KeyResponse{PitchClass: -1}
	if k, ok := music.ImpliedKey(req.Text); ok {
		resp = KeyResponse{
			Key:        k.Label(spellingOfFirst(req.Text)),
			PitchClass: int(k.Root),
			Minor:      k.Minor,
			Camelot:    k.Camelot(),
			Found:      true,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// spellingOfFirst returns the spelling the first chord marker is written in.
func spellingOfFirst(text string) music.Spelling {
	for _, sp := range music.Segment(text) {
		if !sp.Marker {
			continue
		}
		if _, err := music.ParseChord(sp.Inner); err != nil {
			continue
		}
		return music.SpellingOf(sp.Inner)
	}
	return music.Sharp
}

// ReferenceTable handles GET /api/reference-table.
//
//	@Summary		13x12 transposition reference table
//	@Tags			transpose
//	@Produce		json
//	@Param			spelling	query		string	false	"sharp or flat"
//	@Success		200			{object}	music.ReferenceTable
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reference-table [get]
func (h *Handler) ReferenceTable(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("spelling")
	if err := isSpelling(text); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("spelling: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, music.BuildReferenceTable(h.spelling(text)))
}

// Chords handles GET /api/chords.
//
//	@Summary		Chord inventory of the library
//	@Tags			chords
//	@Produce		json
//	@Param			spelling	query		string	false	"sharp or flat"
//	@Success		200			{object}	ChordsResponse
//	@Security		BearerAuth
//	@Router			/chords [get]
func (h *Handler) Chords(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("spelling")
	if err := isSpelling(text); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("spelling: "+err.Error()))
		return
	}
	chords, err := h.svc.Chords(r.Context(), h.spelling(text))
	if err != nil {
		writeServiceError(w, "chords", err)
		return
	}
	writeJSON(w, http.StatusOK, ChordsResponse{Chords: chords})
}

// ChordSongs handles GET /api/chords/{chord}/songs.
//
//	@Summary		Songs using a chord in any spelling
//	@Tags			chords
//	@Produce		json
//	@Param			chord	path		string	true	"Chord symbol, URL-encoded"
//	@Success		200		{object}	ChordSongsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/chords/{chord}/songs [get]
func (h *Handler) ChordSongs(w http.ResponseWriter, r *http.Request) {
	chord := chi.URLParam(r, "chord")
	if decoded, err := url.PathUnescape(chord); err == nil {
		chord = decoded
	}
	paths, err := h.svc.SongsWithChord(r.Context(), chord)
	if err != nil {
		writeServiceError(w, "chord songs", err)
		return
	}
	writeJSON(w, http.StatusOK, ChordSongsResponse{Chord: chord, Songs: paths})
}
