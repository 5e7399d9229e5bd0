// Package gatewaytest runs an in-process stand-in for the remote ledger
// service, for tests of everything that talks to it.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/permission"
)

const (
	AdminID       = "admin-1"
	AdminEmail    = "admin@mail.com"
	AdminPassword = "admin123"

	ClerkID       = "clerk-1"
	ClerkName     = "Budi"
	ClerkEmail    = "budi@mail.com"
	ClerkPassword = "secret123"

	// LowPurchaseLimit is the purchase amount below which an entry shows up
	// in the low-purchase history.
	LowPurchaseLimit = 5
)

type Record map[string]interface{}

// Request is what the backend saw on the wire.
type Request struct {
	Method        string
	Path          string
	Authorization string
	TraceID       string
	Body          Record
}

type account struct {
	id    string
	name  string
	email string
	role  string
	hash  []byte
	perms permission.Set
}

type failure struct {
	status  int
	message string
}

type pause struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pause) open() {
	p.once.Do(func() { close(p.release) })
}

type Backend struct {
	server *httptest.Server
	secret []byte

	mu        sync.Mutex
	accounts  []*account
	ledgers   []Record
	reports   []Record
	requests  []Request
	failures  map[string]failure
	pauses    map[string]*pause
	expired   bool
	nextID    int
	ackWrites bool
	lastField string
	permField string
}

func NewBackend() *Backend {
	b := &Backend{
		secret:    []byte("gatewaytest-secret"),
		failures:  make(map[string]failure),
		pauses:    make(map[string]*pause),
		permField: "permissions",
	}
	b.addAccount(AdminID, "Admin", AdminEmail, AdminPassword, "admin", permission.Set{CanView: true, CanEdit: true, CanDelete: true})
	b.addAccount(ClerkID, ClerkName, ClerkEmail, ClerkPassword, "user", permission.Set{CanView: true, CanEdit: true})

	b.server = httptest.NewServer(b.routes())
	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

func (b *Backend) Close() {
	b.mu.Lock()
	for _, p := range b.pauses {
		p.open()
	}
	b.pauses = make(map[string]*pause)
	b.mu.Unlock()

	b.server.Close()
}

// Config points a gateway client at the backend.
func (b *Backend) Config() gateway.Config {
	return gateway.Config{BaseURL: b.server.URL, Timeout: 5 * time.Second}
}

// Token mints a valid bearer token for userID without a login round trip.
func (b *Backend) Token(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// Expire makes every token the backend ever issued answer 401.
func (b *Backend) Expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expired = true
}

// UsePermissionField makes the backend send permission sets under field,
// "permissions" or "permission".
func (b *Backend) UsePermissionField(field string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permField = field
}

// AckWrites makes create and update answer with a bare message instead of
// the stored record.
func (b *Backend) AckWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ackWrites = true
}

// Fail makes the next request matching method and path answer status.
func (b *Backend) Fail(method, path string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, message: message}
}

// Pause holds the next request matching method and path until release is
// called. arrived is closed once the request reaches the backend.
func (b *Backend) Pause(method, path string) (arrived <-chan struct{}, release func()) {
	p := &pause{arrived: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	b.pauses[method+" "+path] = p
	b.mu.Unlock()

	return p.arrived, p.open
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Count reports how many requests matched method and path.
func (b *Backend) Count(method, path string) int {
	n := 0
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) Permissions(userID string) permission.Set {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.accountByID(userID); a != nil {
		return a.perms
	}
	return permission.Set{}
}

func (b *Backend) SetPermissions(userID string, set permission.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a := b.accountByID(userID); a != nil {
		a.perms = set
	}
}

// LastPermissionField is the body field the last assignment used.
func (b *Backend) LastPermissionField() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastField
}

func (b *Backend) AddUser(name, email, password, role string, perms permission.Set) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("user-%d", b.nextID)
	b.addAccountLocked(id, name, email, password, role, perms)
	return id
}

func (b *Backend) SeedLedger(fields Record) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(&b.ledgers, fields)
}

func (b *Backend) SeedReport(fields Record) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(&b.reports, fields)
}

func (b *Backend) Ledgers() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.ledgers)
}

func (b *Backend) Reports() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.reports)
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/auth/login", b.login)

	r.Group(func(pr chi.Router) {
		pr.Use(b.authenticate)

		pr.Get("/auth/get-permissions/{id}", b.getPermissions)
		pr.Post("/auth/assign-permissions", b.assignPermissions)
		pr.Post("/auth/assign-permission", b.assignPermissions)

		pr.Get("/users/users", b.listUsers)
		pr.Post("/users/create-user", b.createUser)

		pr.Get("/ledger/ledger", b.listLedgers)
		pr.Post("/ledger/ledger", b.createLedger)
		pr.Get("/ledger/low-purchase/{userId}", b.lowPurchase)
		pr.Put("/ledger/{id}", b.updateIn(&b.ledgers, "ledger"))
		pr.Delete("/ledger/{id}", b.deleteIn(&b.ledgers))

		pr.Get("/reports/all", b.listReports)
		pr.Post("/reports", b.createReport)
		pr.Put("/reports/{id}", b.updateIn(&b.reports, "report"))
		pr.Delete("/reports/{id}", b.deleteIn(&b.reports))
	})

	return r
}

// record logs the request, then applies any pending pause or failure.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body Record
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			if len(data) > 0 {
				_ = json.Unmarshal(data, &body)
			}
			r.Body = io.NopCloser(strings.NewReader(string(data)))
		}

		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			TraceID:       r.Header.Get("X-Trace-ID"),
			Body:          body,
		})
		p := b.pauses[key]
		delete(b.pauses, key)
		b.mu.Unlock()

		if p != nil {
			close(p.arrived)
			<-p.release
		}

		b.mu.Lock()
		f, failing := b.failures[key]
		delete(b.failures, key)
		b.mu.Unlock()

		if failing {
			writeJSON(w, f.status, Record{"message": f.message})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, Record{"message": "No token provided"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return b.secret, nil
		})

		b.mu.Lock()
		expired := b.expired
		b.mu.Unlock()

		if err != nil || expired {
			writeJSON(w, http.StatusUnauthorized, Record{"message": "Token is not valid"})
			return
		}

		next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), claims.Subject)))
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Email and password are required"})
		return
	}

	b.mu.Lock()
	var found *account
	for _, a := range b.accounts {
		if strings.EqualFold(a.email, creds.Email) {
			found = a
			break
		}
	}
	b.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.hash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, Record{"message": "Invalid credentials"})
		return
	}

	writeJSON(w, http.StatusOK, Record{
		"token": b.Token(found.id),
		"user": Record{
			"_id":   found.id,
			"name":  found.name,
			"email": found.email,
			"role":  found.role,
		},
	})
}

func (b *Backend) getPermissions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	a := b.accountByID(chi.URLParam(r, "id"))
	var perms permission.Set
	if a != nil {
		perms = a.perms
	}
	field := b.permField
	b.mu.Unlock()

	if a == nil {
		writeJSON(w, http.StatusNotFound, Record{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, Record{field: perms})
}

func (b *Backend) assignPermissions(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID      string          `json:"userId"`
		Permissions *permission.Set `json:"permissions"`
		Permission  *permission.Set `json:"permission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Invalid payload"})
		return
	}

	field, set := "permissions", payload.Permissions
	if set == nil {
		field, set = "permission", payload.Permission
	}
	if set == nil {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Permissions are required"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a := b.accountByID(payload.UserID)
	if a == nil {
		writeJSON(w, http.StatusNotFound, Record{"message": "User not found"})
		return
	}
	a.perms = *set
	b.lastField = field
	writeJSON(w, http.StatusOK, Record{"message": "Permissions updated"})
}

func (b *Backend) listUsers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	users := make([]Record, 0, len(b.accounts))
	for _, a := range b.accounts {
		users = append(users, a.wire(b.permField))
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, users)
}

func (b *Backend) createUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Email == "" {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Invalid user"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range b.accounts {
		if strings.EqualFold(a.email, payload.Email) {
			writeJSON(w, http.StatusBadRequest, Record{"message": "User already exists"})
			return
		}
	}

	b.nextID++
	id := fmt.Sprintf("user-%d", b.nextID)
	a := b.addAccountLocked(id, payload.Name, payload.Email, payload.Password, payload.Role, permission.Set{})
	if b.ackWrites {
		writeJSON(w, http.StatusCreated, Record{"message": "User created"})
		return
	}
	writeJSON(w, http.StatusCreated, a.wire(b.permField))
}

func (b *Backend) listLedgers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, Record{"ledgers": clone(b.ledgers)})
}

func (b *Backend) createLedger(w http.ResponseWriter, r *http.Request) {
	var fields Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Invalid ledger entry"})
		return
	}
	fields["userId"] = subject(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.insert(&b.ledgers, fields)
	if b.ackWrites {
		writeJSON(w, http.StatusCreated, Record{"message": "Ledger entry added"})
		return
	}
	writeJSON(w, http.StatusCreated, Record{"message": "Ledger entry added", "ledger": b.find(b.ledgers, id)})
}

func (b *Backend) lowPurchase(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "userId")

	b.mu.Lock()
	defer b.mu.Unlock()

	out := []Record{}
	for _, rec := range b.ledgers {
		if rec["userId"] == owner && number(rec["purchase"]) < LowPurchaseLimit {
			out = append(out, copyRecord(rec))
		}
	}
	writeJSON(w, http.StatusOK, Record{"ledgers": out})
}

func (b *Backend) listReports(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, Record{"report": clone(b.reports)})
}

func (b *Backend) createReport(w http.ResponseWriter, r *http.Request) {
	var fields Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, Record{"message": "Invalid report"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.insert(&b.reports, fields)
	if b.ackWrites {
		writeJSON(w, http.StatusCreated, Record{"message": "Report created"})
		return
	}
	writeJSON(w, http.StatusCreated, Record{"message": "Report created", "report": b.find(b.reports, id)})
}

func (b *Backend) updateIn(collection *[]Record, envelope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields Record
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeJSON(w, http.StatusBadRequest, Record{"message": "Invalid payload"})
			return
		}
		id := chi.URLParam(r, "id")

		b.mu.Lock()
		defer b.mu.Unlock()

		for i, rec := range *collection {
			if rec["_id"] != id {
				continue
			}
			for k, v := range fields {
				if k == "_id" || k == "id" {
					continue
				}
				rec[k] = v
			}
			(*collection)[i] = rec
			if b.ackWrites {
				writeJSON(w, http.StatusOK, Record{"message": "Updated"})
				return
			}
			writeJSON(w, http.StatusOK, Record{envelope: copyRecord(rec)})
			return
		}
		writeJSON(w, http.StatusNotFound, Record{"message": "Not found"})
	}
}

func (b *Backend) deleteIn(collection *[]Record) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		b.mu.Lock()
		defer b.mu.Unlock()

		for i, rec := range *collection {
			if rec["_id"] == id {
				*collection = append((*collection)[:i], (*collection)[i+1:]...)
				writeJSON(w, http.StatusOK, Record{"message": "Deleted"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, Record{"message": "Not found"})
	}
}

func (b *Backend) addAccount(id, name, email, password, role string, perms permission.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addAccountLocked(id, name, email, password, role, perms)
}

func (b *Backend) addAccountLocked(id, name, email, password, role string, perms permission.Set) *account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a := &account{id: id, name: name, email: email, role: role, hash: hash, perms: perms}
	b.accounts = append(b.accounts, a)
	return a
}

func (b *Backend) accountByID(id string) *account {
	for _, a := range b.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

func (b *Backend) insert(collection *[]Record, fields Record) string {
	b.nextID++
	id := fmt.Sprintf("%024x", b.nextID)
	rec := copyRecord(fields)
	rec["_id"] = id
	*collection = append(*collection, rec)
	return id
}

func (b *Backend) find(collection []Record, id string) Record {
	for _, rec := range collection {
		if rec["_id"] == id {
			return copyRecord(rec)
		}
	}
	return nil
}

func (a *account) wire(permField string) Record {
	return Record{
		"_id":     a.id,
		"name":    a.name,
		"email":   a.email,
		"role":    a.role,
		permField: a.perms,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func clone(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = copyRecord(rec)
	}
	return out
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
