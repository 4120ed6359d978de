// Package docstoretest provides an in-memory json-server stand-in for tests.
package docstoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Document is a stored JSON object
type Document map[string]json.RawMessage

// Server mimics the subset of json-server used by the storefront: GET, POST and
// shallow-merge PATCH over the users and products collections.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string]map[string]Document
	nextID      int
	failures    []int
	requests    map[string]int
	beforeWrite func(collection, id string)
}

// NewServer starts a fake store with empty users and products collections
func NewServer() *Server {
	s := &Server{
		collections: map[string]map[string]Document{
			"users":    {},
			"products": {},
		},
		nextID:   1,
		requests: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Put stores v under collection/id, replacing any existing document
func (s *Server) Put(collection, id string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(err)
	}
	doc["id"] = json.RawMessage(strconv.Quote(id))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection][id] = doc
}

// Get decodes the document at collection/id into out and reports whether it exists
func (s *Server) Get(collection, id string, out interface{}) bool {
	s.mu.Lock()
	doc, ok := s.collections[collection][id]
	s.mu.Unlock()

	if !ok {
		return false
	}

	raw, _ := json.Marshal(doc)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return true
}

// Field returns one raw field of a stored document
func (s *Server) Field(collection, id, field string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collections[collection][id][field]
}

// FailNext makes the next len(statuses) requests answer with the given statuses
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// BeforeWrite registers a hook run before each PATCH is applied
func (s *Server) BeforeWrite(fn func(collection, id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeWrite = fn
}

// Requests counts the requests received for a method
func (s *Server) Requests(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method]
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests[r.Method]++

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		s.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	hook := s.beforeWrite
	s.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	collection := parts[0]

	s.mu.Lock()
	_, known := s.collections[collection]
	s.mu.Unlock()

	if !known || len(parts) > 2 {
		writeJSON(w, http.StatusNotFound, Document{})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.list(w, r, collection)
		case http.MethodPost:
			s.create(w, r, collection)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	id := parts[1]

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		doc, ok := s.collections[collection][id]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, Document{})
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodPatch:
		if hook != nil {
			hook(collection, id)
		}
		s.patch(w, r, collection, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, collection string) {
	s.mu.Lock()
	docs := make([]Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		if matches(doc, r.URL.Query()) {
			docs = append(docs, doc)
		}
	}
	s.mu.Unlock()

	sort.Slice(docs, func(i, j int) bool {
		return string(docs[i]["id"]) < string(docs[j]["id"])
	})
	writeJSON(w, http.StatusOK, docs)
}

func matches(doc Document, query map[string][]string) bool {
	for field, values := range query {
		var v string
		if err := json.Unmarshal(doc[field], &v); err != nil || v != values[0] {
			return false
		}
	}
	return true
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, collection string) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, Document{})
		return
	}

	s.mu.Lock()
	id := strconv.Itoa(s.nextID)
	for s.collections[collection][id] != nil {
		s.nextID++
		id = strconv.Itoa(s.nextID)
	}
	s.nextID++
	doc["id"] = json.RawMessage(strconv.Quote(id))
	s.collections[collection][id] = doc
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request, collection, id string) {
	var fields Document
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, Document{})
		return
	}

	s.mu.Lock()
	current, ok := s.collections[collection][id]
	doc := make(Document, len(current)+len(fields))
	if ok {
		for k, v := range current {
			doc[k] = v
		}
		for k, v := range fields {
			if k != "id" {
				doc[k] = v
			}
		}
		// stored documents are never mutated in place
		s.collections[collection][id] = doc
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, Document{})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
