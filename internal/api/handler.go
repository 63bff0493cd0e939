package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmafind/m/domain"
	"pharmafind/m/internal/config"
	"pharmafind/m/internal/geo"
	"pharmafind/m/internal/logger"
	"pharmafind/m/internal/token"
)

type ctxKey string

const ctxIdentity ctxKey = "identity"

// sessionCookie transports the signed credential. HttpOnly always,
// Secure in production.
const sessionCookie = "token"

// searchResultLimit caps search responses to the nearest matches.
const searchResultLimit = 3

// invalidCredentialsMsg is shared by the unknown-email and wrong-password
// paths so login failures cannot be used to enumerate accounts.
const invalidCredentialsMsg = "invalid credentials"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db            *sqlx.DB
	logger        *slog.Logger
	secret        string
	tokenTTL      time.Duration
	secureCookies bool
}

// New constructs a Handler.
func New(db *sqlx.DB, log *slog.Logger, cfg config.Config) *Handler {
	return &Handler{
		db:            db,
		logger:        log,
		secret:        cfg.Secret,
		tokenTTL:      cfg.TokenTTL,
		secureCookies: cfg.Production(),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Get("/medicines/search", h.searchMedicines)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Route("/pharmacy", func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Get("/me", h.getPharmacy)
		r.Put("/me", h.updatePharmacy)
		r.Get("/medicines", h.listMedicines)
		r.Post("/medicines", h.addMedicine)
		r.Put("/medicines/{id}", h.setMedicineAvailability)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

// authMiddleware resolves the session credential from the cookie, or from a
// bearer header for non-browser clients, and stores the identity in the
// request context. Requests without a valid credential never reach handlers.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := credentialFromRequest(r)
		if raw == "" {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := token.Parse(h.secret, raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		ctx := context.WithValue(r.Context(), ctxIdentity, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func credentialFromRequest(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}

func identityFrom(r *http.Request) *token.Identity {
	id, _ := r.Context().Value(ctxIdentity).(*token.Identity)
	return id
}

// requireOwner returns the caller's identity when it carries the
// pharmacy-owner role, responding 401 otherwise.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request) (*token.Identity, bool) {
	id := identityFrom(r)
	if id == nil || id.Role != domain.RolePharmacyOwner {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return id, true
}

func (h *Handler) issueSession(w http.ResponseWriter, id token.Identity) (string, error) {
	tok, err := token.Sign(h.secret, id, h.tokenTTL)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(h.tokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return tok, nil
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Auth handlers

type registerRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
	Name     string   `json:"name,omitempty"`
	Address  string   `json:"address,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
}

type authResponse struct {
	Token    string           `json:"token"`
	User     domain.User      `json:"user"`
	Pharmacy *domain.Pharmacy `json:"pharmacy,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "email, password and role are required")
		return
	}
	if !domain.ValidRole(req.Role) {
		respondError(w, http.StatusBadRequest, "role must be customer or pharmacy-owner")
		return
	}
	if req.Role == domain.RolePharmacyOwner {
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Address) == "" || strings.TrimSpace(req.Phone) == "" {
			respondError(w, http.StatusBadRequest, "name, address and phone are required for pharmacy owners")
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, "unable to secure password", err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// User and pharmacy rows are created in one transaction: a pharmacy
	// owner without a pharmacy must never be observable.
	tx, err := h.db.Beginx()
	if err != nil {
		h.internalError(w, "unable to start registration", err)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
		email, string(hashed), req.Role)
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
		h.internalError(w, "unable to create account", err)
		return
	}
	userID, err := res.LastInsertId()
	if err != nil {
		h.internalError(w, "unable to create account", err)
		return
	}

	var pharmacy *domain.Pharmacy
	if req.Role == domain.RolePharmacyOwner {
		res, err := tx.Exec(`INSERT INTO pharmacies (user_id, name, address, lat, lng, phone) VALUES (?, ?, ?, ?, ?, ?)`,
			userID, req.Name, req.Address, req.Lat, req.Lng, req.Phone)
		if err != nil {
			h.internalError(w, "unable to create pharmacy for owner", err)
			return
		}
		pharmacyID, err := res.LastInsertId()
		if err != nil {
			h.internalError(w, "unable to create pharmacy for owner", err)
			return
		}
		address, phone := req.Address, req.Phone
		pharmacy = &domain.Pharmacy{
			ID:      pharmacyID,
			UserID:  userID,
			Name:    req.Name,
			Address: &address,
			Lat:     req.Lat,
			Lng:     req.Lng,
			Phone:   &phone,
		}
	}

	if err := tx.Commit(); err != nil {
		h.internalError(w, "unable to complete registration", err)
		return
	}

	tok, err := h.issueSession(w, token.Identity{UserID: userID, Email: email, Role: req.Role})
	if err != nil {
		h.internalError(w, "unable to issue session", err)
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token:    tok,
		User:     domain.User{ID: userID, Email: email, Role: req.Role},
		Pharmacy: pharmacy,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, email, password_hash, role FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusUnauthorized, invalidCredentialsMsg)
		return
	}
	if err != nil {
		h.internalError(w, "unable to look up account", err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, invalidCredentialsMsg)
		return
	}

	tok, err := h.issueSession(w, token.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		h.internalError(w, "unable to issue session", err)
		return
	}

	respondJSON(w, http.StatusOK, authResponse{Token: tok, User: user})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearSession(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if id == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.internalError(w, "unable to secure password", err)
		return
	}
	if _, err := h.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, string(hashed), id.UserID); err != nil {
		h.internalError(w, "unable to update password", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Medicine search

type medicineSearchResult struct {
	ID           int64    `db:"id" json:"id"`
	PharmacyID   int64    `db:"pharmacy_id" json:"pharmacy_id"`
	Name         string   `db:"name" json:"name"`
	Description  *string  `db:"description" json:"description,omitempty"`
	Price        *float64 `db:"price" json:"price,omitempty"`
	PharmacyName string   `db:"pharmacy_name" json:"pharmacy_name"`
	Address      *string  `db:"address" json:"address,omitempty"`
	Lat          *float64 `db:"lat" json:"lat,omitempty"`
	Lng          *float64 `db:"lng" json:"lng,omitempty"`
	Phone        *string  `db:"phone" json:"phone,omitempty"`
	Distance     *float64 `db:"-" json:"distance,omitempty"`
}

// searchMedicines is the public storefront query: available medicines whose
// name contains the pattern, joined with their pharmacy. With caller
// coordinates the results are ranked nearest-first; pharmacies without a
// stored coordinate sort last and carry no distance.
func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "medicine name is required")
		return
	}

	var (
		lat, lng  float64
		hasCoords bool
	)
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr != "" && lngStr != "" {
		var err error
		lat, err = strconv.ParseFloat(latStr, 64)
		if err == nil {
			lng, err = strconv.ParseFloat(lngStr, 64)
		}
		if err != nil {
			respondError(w, http.StatusBadRequest, "lat and lng must be numeric")
			return
		}
		hasCoords = true
	}

	like := "%" + escapeLike(name) + "%"
	results := []medicineSearchResult{}
	err := h.db.Select(&results, `SELECT m.id, m.pharmacy_id, m.name, m.description, m.price,
                p.name AS pharmacy_name, p.address, p.lat, p.lng, p.phone
        FROM medicines m
        JOIN pharmacies p ON p.id = m.pharmacy_id
        WHERE m.name LIKE ? ESCAPE '\' AND m.is_available = 1`, like)
	if err != nil {
		h.internalError(w, "unable to search medicines", err)
		return
	}

	if hasCoords {
		for i := range results {
			if results[i].Lat == nil || results[i].Lng == nil {
				continue
			}
			d := geo.Distance(lat, lng, *results[i].Lat, *results[i].Lng)
			results[i].Distance = &d
		}
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Distance, results[j].Distance
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return *a < *b
		})
	}

	if len(results) > searchResultLimit {
		results = results[:searchResultLimit]
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicines": results})
}

// escapeLike neutralizes LIKE metacharacters so the pattern matches as an
// exact substring. Queries using it must carry ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Pharmacy profile handlers

func (h *Handler) getPharmacy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	var pharmacy domain.Pharmacy
	err := h.db.Get(&pharmacy, `SELECT id, user_id, name, address, lat, lng, phone FROM pharmacies WHERE user_id = ?`, id.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "pharmacy not found")
		return
	}
	if err != nil {
		h.internalError(w, "unable to load pharmacy", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"pharmacy": pharmacy})
}

type pharmacyUpdateRequest struct {
	Name    *string  `json:"name"`
	Address *string  `json:"address"`
	Phone   *string  `json:"phone"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// updatePharmacy applies only the fields present in the body; absent fields
// keep their stored values.
func (h *Handler) updatePharmacy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	var req pharmacyUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.db.Exec(`UPDATE pharmacies
        SET name = COALESCE(?, name),
            address = COALESCE(?, address),
            phone = COALESCE(?, phone),
            lat = COALESCE(?, lat),
            lng = COALESCE(?, lng)
        WHERE user_id = ?`,
		req.Name, req.Address, req.Phone, req.Lat, req.Lng, id.UserID)
	if err != nil {
		h.internalError(w, "unable to update pharmacy", err)
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		h.internalError(w, "unable to update pharmacy", err)
		return
	}
	if affected == 0 {
		respondError(w, http.StatusNotFound, "pharmacy not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Medicine catalog handlers

// pharmacyIDForOwner resolves the caller's pharmacy row. sql.ErrNoRows is
// passed through for the handler to map to 404.
func (h *Handler) pharmacyIDForOwner(userID int64) (int64, error) {
	var pharmacyID int64
	err := h.db.Get(&pharmacyID, `SELECT id FROM pharmacies WHERE user_id = ?`, userID)
	return pharmacyID, err
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	pharmacyID, err := h.pharmacyIDForOwner(id.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "pharmacy not found")
		return
	}
	if err != nil {
		h.internalError(w, "unable to load pharmacy", err)
		return
	}

	medicines := []domain.Medicine{}
	if err := h.db.Select(&medicines, `SELECT id, pharmacy_id, name, description, price, is_available FROM medicines WHERE pharmacy_id = ?`, pharmacyID); err != nil {
		h.internalError(w, "unable to list medicines", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"medicines": medicines})
}

type medicineRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	IsAvailable *bool    `json:"is_available"`
}

func (h *Handler) addMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	pharmacyID, err := h.pharmacyIDForOwner(id.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "pharmacy not found")
		return
	}
	if err != nil {
		h.internalError(w, "unable to load pharmacy", err)
		return
	}

	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	res, err := h.db.Exec(`INSERT INTO medicines (pharmacy_id, name, description, price, is_available) VALUES (?, ?, ?, ?, ?)`,
		pharmacyID, req.Name, req.Description, req.Price, available)
	if err != nil {
		h.internalError(w, "unable to add medicine", err)
		return
	}
	medicineID, err := res.LastInsertId()
	if err != nil {
		h.internalError(w, "unable to add medicine", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "medicine_id": medicineID})
}

// setMedicineAvailability toggles a medicine belonging to the caller's
// pharmacy. A foreign or unknown id yields 404 so the response does not
// reveal whether another pharmacy's medicine exists.
func (h *Handler) setMedicineAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireOwner(w, r)
	if !ok {
		return
	}
	medicineID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	pharmacyID, err := h.pharmacyIDForOwner(id.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "pharmacy not found")
		return
	}
	if err != nil {
		h.internalError(w, "unable to load pharmacy", err)
		return
	}

	var payload struct {
		IsAvailable *bool `json:"is_available"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.IsAvailable == nil {
		respondError(w, http.StatusBadRequest, "is_available is required")
		return
	}

	res, err := h.db.Exec(`UPDATE medicines SET is_available = ? WHERE id = ? AND pharmacy_id = ?`,
		*payload.IsAvailable, medicineID, pharmacyID)
	if err != nil {
		h.internalError(w, "unable to update medicine", err)
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		h.internalError(w, "unable to update medicine", err)
		return
	}
	if affected == 0 {
		respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Helpers

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (h *Handler) internalError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, "err", err)
	respondError(w, http.StatusInternalServerError, message)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
