// Package paperlesstest provides an in-memory Paperless-ngx API for tests.
package paperlesstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/mfenderov/paperless-tagger/pkg/models"
)

// Token is the API token the fake server accepts.
const Token = "test-token"

// BulkEdit records one bulk_edit request as received.
type BulkEdit struct {
	Documents  []int          `json:"documents"`
	Method     string         `json:"method"`
	Parameters map[string]any `json:"parameters"`
}

// AddTags returns the add_tags ids of the request.
func (b BulkEdit) AddTags() []int {
	return ints(b.Parameters["add_tags"])
}

// Server is a fake Paperless instance backed by in-memory state.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	pageSize  int
	tags      []models.Tag
	docs      []models.Document
	nextTagID int
	bulkEdits []BulkEdit
	titles    map[int][]string
	tagPosts  []string
	fail      map[string]int // "METHOD /path" prefix -> status
}

// New starts a fake server and closes it when the test ends.
// Lists are served two items per page unless the request sets page_size.
func New(t testing.TB) *Server {
	s := &Server{
		pageSize:  2,
		nextTagID: 100,
		titles:    make(map[int][]string),
		fail:      make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddTag seeds a tag and returns it.
func (s *Server) AddTag(id int, name string) models.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag := models.Tag{ID: id, Name: name, Color: "#a6cee3"}
	s.tags = append(s.tags, tag)
	return tag
}

// AddDocument seeds a document.
func (s *Server) AddDocument(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

// Fail makes every request whose "METHOD /path" starts with prefix return status.
func (s *Server) Fail(prefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[prefix] = status
}

// Tags returns the current tags.
func (s *Server) Tags() []models.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tags)
}

// Document returns the current state of a document.
func (s *Server) Document(id int) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == id {
			return d, true
		}
	}
	return models.Document{}, false
}

// BulkEdits returns all bulk_edit requests received.
func (s *Server) BulkEdits() []BulkEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.bulkEdits)
}

// TitleUpdates returns the titles PATCHed onto a document, in order.
func (s *Server) TitleUpdates(id int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.titles[id])
}

// TagCreates returns the names of tags created through the API.
func (s *Server) TagCreates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tagPosts)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Token "+Token {
		http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Method + " " + r.URL.Path
	for prefix, status := range s.fail {
		if strings.HasPrefix(key, prefix) {
			http.Error(w, `{"detail":"forced failure"}`, status)
			return
		}
	}

	switch {
	case r.URL.Path == "/api/tags/" && r.Method == http.MethodGet:
		s.listTags(w, r)
	case r.URL.Path == "/api/tags/" && r.Method == http.MethodPost:
		s.createTag(w, r)
	case r.URL.Path == "/api/documents/" && r.Method == http.MethodGet:
		s.listDocuments(w, r)
	case r.URL.Path == "/api/documents/bulk_edit/" && r.Method == http.MethodPost:
		s.bulkEdit(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/documents/"):
		s.document(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags := s.tags
	if name := r.URL.Query().Get("name"); name != "" {
		tags = nil
		for _, t := range s.tags {
			if t.Name == name {
				tags = append(tags, t)
			}
		}
	}
	writePage(w, r, tags, s.pageSize)
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, `{"name":["This field is required."]}`, http.StatusBadRequest)
		return
	}
	for _, t := range s.tags {
		if strings.EqualFold(t.Name, req.Name) {
			http.Error(w, `{"name":["Tag with this name already exists."]}`, http.StatusBadRequest)
			return
		}
	}
	s.nextTagID++
	tag := models.Tag{ID: s.nextTagID, Name: req.Name, Color: req.Color}
	s.tags = append(s.tags, tag)
	s.tagPosts = append(s.tagPosts, req.Name)
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs := slices.Clone(s.docs)
	if ex := q.Get("tags__exclude"); ex != "" {
		id, _ := strconv.Atoi(ex)
		docs = slices.DeleteFunc(docs, func(d models.Document) bool { return d.HasTag(id) })
	}
	if q.Get("ordering") == "-added" {
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Added.After(docs[j].Added) })
	}
	pageSize := s.pageSize
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 {
		pageSize = n
	}
	writePage(w, r, docs, pageSize)
}

func (s *Server) bulkEdit(w http.ResponseWriter, r *http.Request) {
	var req BulkEdit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"bad json"}`, http.StatusBadRequest)
		return
	}
	if _, ok := req.Parameters["remove_tags"]; !ok {
		http.Error(w, `{"remove_tags":["This field is required."]}`, http.StatusBadRequest)
		return
	}
	s.bulkEdits = append(s.bulkEdits, req)
	for i := range s.docs {
		if slices.Contains(req.Documents, s.docs[i].ID) {
			for _, id := range req.AddTags() {
				if !s.docs[i].HasTag(id) {
					s.docs[i].Tags = append(s.docs[i].Tags, id)
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "OK"})
}

func (s *Server) document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/"), "/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	idx := slices.IndexFunc(s.docs, func(d models.Document) bool { return d.ID == id })
	if idx < 0 {
		http.Error(w, `{"detail":"No Document matches the given query."}`, http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.docs[idx])
	case http.MethodPatch:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"detail":"bad json"}`, http.StatusBadRequest)
			return
		}
		if len([]rune(req.Title)) > 255 {
			http.Error(w, `{"title":["Ensure this field has no more than 255 characters."]}`, http.StatusBadRequest)
			return
		}
		s.docs[idx].Title = req.Title
		s.titles[id] = append(s.titles[id], req.Title)
		writeJSON(w, http.StatusOK, s.docs[idx])
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T, pageSize int) {
	page := 1
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		page = n
	}
	start := min((page-1)*pageSize, len(items))
	end := min(start+pageSize, len(items))

	resp := models.Page[T]{Count: len(items), Results: items[start:end]}
	if resp.Results == nil {
		resp.Results = []T{}
	}
	if end < len(items) {
		next := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		link := next.String()
		resp.Next = &link
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ints(v any) []int {
	list, _ := v.([]any)
	out := make([]int, 0, len(list))
	for _, item := range list {
		if f, ok := item.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
