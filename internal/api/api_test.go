package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/songbook/internal/music"
	"github.com/starford/songbook/internal/songservice"
	"github.com/starford/songbook/internal/testutil"
)

// stubEvents is an EventSink that blocks like an SSE stream and records
// transposed notifications.
type stubEvents struct {
	mu         sync.Mutex
	transposed []string
}

func (s *stubEvents) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
}

func (s *stubEvents) PublishTransposed(path, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transposed = append(s.transposed, path+":"+key)
}

// testEnv sets up a temp library, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*songservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithEvents(t, authToken != "", authToken)
	return svc, router
}

func testEnvWithEvents(t *testing.T, authEnabled bool, authToken string) (*songservice.Service, http.Handler, *stubEvents) {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	svc := songservice.NewService(store, db, music.Sharp)
	events := &stubEvents{}
	return svc, NewRouter(svc, authEnabled, authToken, events), events
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSong(t *testing.T, router http.Handler, path, content string) SongDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/songs", map[string]string{"path": path, "content": content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create %s = %d, body = %s", path, w.Code, w.Body.String())
	}
	var song SongDetail
	_ = json.Unmarshal(w.Body.Bytes(), &song)
	return song
}

const grace = "---\ntitle: Amazing Grace\nkey: G\n---\n[G]Amazing [G7]grace, how [C]sweet the [G]sound\n"

func TestCreateAndGetSong(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "hymns/grace.md", grace)

	w := do(t, router, http.MethodGet, "/songs/hymns/grace.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var song SongDetail
	_ = json.Unmarshal(w.Body.Bytes(), &song)
	if song.Path != "hymns/grace.md" {
		t.Errorf("path = %q", song.Path)
	}
	if song.Title != "Amazing Grace" || song.Key != "G" {
		t.Errorf("title = %q key = %q", song.Title, song.Key)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+song.Checksum+`"` {
		t.Errorf("ETag = %q, want quoted checksum", etag)
	}
}

func TestGetSong_EncodedPath(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "folk/song.md", "[Am]x")

	w := do(t, router, http.MethodGet, "/songs/folk%2Fsong.md", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded path = %d, want 200", w.Code)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "dup.md", "[C]a")

	w := do(t, router, http.MethodPost, "/songs", map[string]string{"path": "dup.md", "content": "[C]a"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateSong_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/songs", map[string]string{"path": "x.md"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing content = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/songs", map[string]string{"path": "x.txt", "content": "[C]"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-md path = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createSong(t, router, "lock.md", "[C]v1")

	// ETag form is accepted.
	w := do(t, router, http.MethodPut, "/songs/lock.md", map[string]string{"content": "[D]v2"}, "If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale checksum.
	w = do(t, router, http.MethodPut, "/songs/lock.md", map[string]string{"content": "[E]v3"}, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "nolock.md", "[C]v1")

	w := do(t, router, http.MethodPut, "/songs/nolock.md", map[string]string{"content": "[C]v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteSong(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "bye.md", "[C]gone")

	if w := do(t, router, http.MethodDelete, "/songs/bye.md", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/songs/bye.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/songs/bye.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListSongs(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "a.md", "[Bb]one")
	createSong(t, router, "b.md", "[A#]two")
	createSong(t, router, "c.md", "[C]three")

	w := do(t, router, http.MethodGet, "/songs?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp SongListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Songs) != 3 {
		t.Errorf("songs = %d total = %d, want 3", len(resp.Songs), resp.Total)
	}

	w = do(t, router, http.MethodGet, "/songs?key=Bb", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("key=Bb total = %d, want 2", resp.Total)
	}

	if w := do(t, router, http.MethodGet, "/songs?sort=bogus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestGetSong_Transposed(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "grace.md", grace)

	w := do(t, router, http.MethodGet, "/songs/grace.md?transpose=1&semitones=3&spelling=flat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("transposed get = %d, body = %s", w.Code, w.Body.String())
	}
	var out TransposedSong
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if !strings.Contains(out.Content, "[Bb]Amazing [Bb7]grace, how [Eb]sweet the [Bb]sound") {
		t.Errorf("content = %q", out.Content)
	}
	if out.OriginalKey != "G" || out.Key != "Bb" || out.Semitones != 3 {
		t.Errorf("keys = %q -> %q (%d)", out.OriginalKey, out.Key, out.Semitones)
	}

	w = do(t, router, http.MethodGet, "/songs/grace.md?to=E", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Semitones != -3 || out.Key != "E" {
		t.Errorf("to=E: semitones = %d key = %q, want -3 E", out.Semitones, out.Key)
	}

	if w := do(t, router, http.MethodGet, "/songs/grace.md?semitones=13", nil); w.Code != http.StatusBadRequest {
		t.Errorf("semitones=13 = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/songs/grace.md?semitones=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("semitones=x = %d, want 400", w.Code)
	}
}

func TestSaveTransposed(t *testing.T) {
	_, router, events := testEnvWithEvents(t, false, "")
	created := createSong(t, router, "grace.md", grace)

	w := do(t, router, http.MethodPost, "/transpose/grace.md", map[string]any{"semitones": 2}, "If-Match", created.Checksum)
	if w.Code != http.StatusOK {
		t.Fatalf("save transposed = %d, body = %s", w.Code, w.Body.String())
	}
	var song SongDetail
	_ = json.Unmarshal(w.Body.Bytes(), &song)
	if song.Key != "A" || !strings.Contains(song.Content, "key: A\n") || !strings.Contains(song.Content, "[A]Amazing [A7]grace") {
		t.Errorf("song = %+v", song)
	}

	events.mu.Lock()
	got := strings.Join(events.transposed, ",")
	events.mu.Unlock()
	if got != "grace.md:A" {
		t.Errorf("transposed events = %q, want grace.md:A", got)
	}

	// The old checksum is stale now.
	w = do(t, router, http.MethodPost, "/transpose/grace.md", map[string]any{"semitones": 1}, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("stale save = %d, want 409", w.Code)
	}
}

func TestSaveTransposed_NoKey(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "words.md", "only words")

	w := do(t, router, http.MethodPost, "/transpose/words.md", map[string]any{"to": "C"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("to-key without chords = %d, want 422", w.Code)
	}
}

func TestTransposeText(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/transpose", map[string]any{
		"text":      "[C]Hello [G/B]world [Am7]again",
		"semitones": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("transpose = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TransposeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Text != "[D]Hello [A/C#]world [Bm7]again" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.OriginalKey != "C" || resp.Key != "D" || resp.Semitones != 2 || resp.Spelling != "sharp" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTransposeText_ToKey(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/transpose", map[string]any{
		"text":     "[Em]Tell me [C]why",
		"to":       "G",
		"spelling": "flat",
	})
	var resp TransposeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Semitones != 3 || resp.Text != "[Gm]Tell me [Eb]why" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTransposeText_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	for name, body := range map[string]map[string]any{
		"offset too large": {"text": "[C]", "semitones": 13},
		"offset too small": {"text": "[C]", "semitones": -13},
		"bad spelling":     {"text": "[C]", "spelling": "natural"},
		"bad key":          {"text": "[C]", "to": "H"},
	} {
		if w := do(t, router, http.MethodPost, "/transpose", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", name, w.Code)
		}
	}
	if w := do(t, router, http.MethodPost, "/transpose", map[string]any{"text": "no chords", "to": "C"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("to-key without chords = %d, want 422", w.Code)
	}
}

func TestTransposeText_MalformedMarkersKept(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/transpose", map[string]any{"text": "[Chorus] [C] [Xyz]", "semitones": 1})
	var resp TransposeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Text != "[Chorus] [C#] [Xyz]" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestDetectKey(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/key", map[string]string{"text": "intro [Bbm]one [Gb]two"})
	var resp KeyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Found || resp.Key != "Bbm" || resp.PitchClass != 10 || !resp.Minor {
		t.Errorf("resp = %+v", resp)
	}

	w = do(t, router, http.MethodPost, "/key", map[string]string{"text": "no chords"})
	resp = KeyResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Found || resp.PitchClass != -1 {
		t.Errorf("no chords resp = %+v", resp)
	}
}

func TestReferenceTable(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/reference-table?spelling=flat", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("table = %d", w.Code)
	}
	var table music.ReferenceTable
	if err := json.Unmarshal(w.Body.Bytes(), &table); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if table.Rows[0].Offset != -6 || table.Rows[12].Offset != 6 {
		t.Errorf("offsets = %d..%d", table.Rows[0].Offset, table.Rows[12].Offset)
	}
	if table.Rows[7].Notes[0] != "Db" {
		t.Errorf("row +1 col C = %q, want Db", table.Rows[7].Notes[0])
	}

	if w := do(t, router, http.MethodGet, "/reference-table?spelling=weird", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad spelling = %d, want 400", w.Code)
	}
}

func TestChordEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "a.md", "[D/F#]x [G]y")
	createSong(t, router, "b.md", "[Em]z [G]w")

	w := do(t, router, http.MethodGet, "/chords", nil)
	var chords ChordsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &chords)
	if len(chords.Chords) == 0 || chords.Chords[0].Chord != "G" || chords.Chords[0].Songs != 2 {
		t.Errorf("chords = %+v", chords.Chords)
	}

	w = do(t, router, http.MethodGet, "/chords/D%2FGb/songs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("chord songs = %d, body = %s", w.Code, w.Body.String())
	}
	var songs ChordSongsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &songs)
	if len(songs.Songs) != 1 || songs.Songs[0] != "a.md" {
		t.Errorf("songs = %+v", songs)
	}

	if w := do(t, router, http.MethodGet, "/chords/Verse/songs", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad chord = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createSong(t, router, "find.md", "[C]uniquetoken here")

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Errorf("search results = %d, want 1", len(resp.Results))
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodPost, "/songs", map[string]string{"path": "auth.md", "content": "[C]"}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/songs", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/songs", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/songs", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestGetSong_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/songs/nope.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing song = %d, want 404", w.Code)
	}
}

func TestUpdateSong_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPut, "/songs/ghost.md", map[string]string{"content": "[C]"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithEvents(t, true, "secret")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithEvents(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/songs?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	w := do(t, router, http.MethodPost, "/songs?access_token=secret123", map[string]string{"path": "q.md", "content": "[C]"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestValidationError_Fields(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/transpose", map[string]any{"text": "[C]", "semitones": 13, "spelling": "natural"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp.Fields["semitones"]; !ok {
		t.Errorf("fields = %v, want semitones", resp.Fields)
	}
	if _, ok := resp.Fields["spelling"]; !ok {
		t.Errorf("fields = %v, want spelling", resp.Fields)
	}
}

