package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dientoan/secom-client/pkg/models"
)

func tokenHandler(logger *logrus.Logger, store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid form body")
			return
		}

		switch r.PostFormValue("grant_type") {
		case "password":
			username := r.PostFormValue("username")
			acct := store.authenticate(username, r.PostFormValue("password"))
			if acct == nil {
				logger.WithField("username", username).Warn("Rejected login")
				respondWithError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			logger.WithField("username", username).Info("Issued token pair")
			respondWithJSON(w, http.StatusOK, store.issueTokens(username))

		case "refresh_token":
			username, ok := store.usernameForRefresh(r.PostFormValue("refresh_token"))
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "invalid refresh token")
				return
			}
			logger.WithField("username", username).Info("Refreshed token pair")
			respondWithJSON(w, http.StatusOK, store.issueTokens(username))

		default:
			respondWithError(w, http.StatusBadRequest, "unsupported grant_type")
		}
	}
}

func findOrders(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		if size <= 0 {
			size = 20
		}
		if size > 100 {
			size = 100
		}

		orders := store.sortedOrders()
		total := len(orders)
		totalPages := (total + size - 1) / size

		start := page * size
		if start > total {
			start = total
		}
		end := start + size
		if end > total {
			end = total
		}

		respondWithJSON(w, http.StatusOK, models.OrderPage{
			Content:       orders[start:end],
			TotalElements: total,
			TotalPages:    totalPages,
			Last:          page >= totalPages-1,
			First:         page == 0,
			Number:        page,
			Size:          size,
		})
	}
}

func getOrder(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store.mutex.RLock()
		order, exists := store.orders[mux.Vars(r)["id"]]
		store.mutex.RUnlock()
		if !exists {
			respondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		respondWithJSON(w, http.StatusOK, order)
	}
}

func createOrder(logger *logrus.Logger, store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var order models.Order
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		order.ID = uuid.New().String()
		order.Version = 0
		order.CreatedDate = time.Now()
		if order.IssuePlace == "" {
			order.IssuePlace = models.IssuePlaceUnassigned
		}

		store.mutex.Lock()
		store.orders[order.ID] = &order
		store.mutex.Unlock()

		logger.WithField("order_id", order.ID).Info("Order created")
		respondWithJSON(w, http.StatusCreated, order)
	}
}

// patchOrder applies a partial update with optimistic concurrency: a stale
// version is rejected with 409.
func patchOrder(logger *logrus.Logger, store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var updates models.Order
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if updates.ID == "" {
			respondWithError(w, http.StatusBadRequest, "id is required")
			return
		}

		store.mutex.Lock()
		defer store.mutex.Unlock()

		order, exists := store.orders[updates.ID]
		if !exists {
			respondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		if updates.Version != order.Version {
			logger.WithFields(logrus.Fields{
				"order_id": updates.ID,
				"sent":     updates.Version,
				"current":  order.Version,
			}).Warn("Version conflict")
			respondWithError(w, http.StatusConflict, "version conflict")
			return
		}

		if updates.IssuePlace != "" {
			order.IssuePlace = updates.IssuePlace
		}
		if updates.FacilityType != nil {
			order.FacilityType = updates.FacilityType
		}
		if updates.StateOpt != nil {
			order.StateOpt = updates.StateOpt
		}
		if updates.Name != "" {
			order.Name = updates.Name
		}
		if updates.Note != "" {
			order.Note = updates.Note
		}
		order.Version++

		logger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"version":  order.Version,
		}).Info("Order patched")
		respondWithJSON(w, http.StatusOK, order)
	}
}

func facilityStatistics(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts := make(map[string]*models.FacilityStat)
		for _, o := range store.sortedOrders() {
			if o.FacilityType == nil {
				continue
			}
			stat, ok := counts[o.FacilityType.ID]
			if !ok {
				stat = &models.FacilityStat{FacilityType: *o.FacilityType}
				counts[o.FacilityType.ID] = stat
			}
			stat.Count++
		}
		stats := make([]models.FacilityStat, 0, len(counts))
		for _, s := range counts {
			stats = append(stats, *s)
		}
		respondWithJSON(w, http.StatusOK, stats)
	}
}

func searchOrgUnits(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lvl, _ := strconv.Atoi(r.URL.Query().Get("lvl"))
		store.mutex.RLock()
		units := store.orgUnits[lvl]
		store.mutex.RUnlock()
		respondWithJSON(w, http.StatusOK, models.OrgUnitPage{Content: units, TotalElements: len(units)})
	}
}

func findOptions(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group := r.URL.Query().Get("optionGroupCode")
		store.mutex.RLock()
		opts := store.options[group]
		store.mutex.RUnlock()
		respondWithJSON(w, http.StatusOK, models.OptionPage{Content: opts, TotalElements: len(opts)})
	}
}

func findUsers(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := store.users()
		respondWithJSON(w, http.StatusOK, models.UserPage{Content: users, TotalElements: len(users)})
	}
}

func getUser(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		for _, u := range store.users() {
			if u.ID == id {
				respondWithJSON(w, http.StatusOK, u)
				return
			}
		}
		respondWithError(w, http.StatusNotFound, "user not found")
	}
}

func patchUser(store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var updates models.User
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		store.mutex.Lock()
		defer store.mutex.Unlock()
		for _, acct := range store.accounts {
			if acct.user.ID == updates.ID {
				if updates.Name != "" {
					acct.user.Name = updates.Name
				}
				if updates.Phone != "" {
					acct.user.Phone = updates.Phone
				}
				if updates.Email != "" {
					acct.user.Email = updates.Email
				}
				if updates.Address != "" {
					acct.user.Address = updates.Address
				}
				respondWithJSON(w, http.StatusOK, acct.user)
				return
			}
		}
		respondWithError(w, http.StatusNotFound, "user not found")
	}
}

func changePassword(logger *logrus.Logger, store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, _ := usernameFrom(r, store)
		var req struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		store.mutex.Lock()
		defer store.mutex.Unlock()
		acct, ok := store.accounts[username]
		if !ok || acct.password != req.OldPassword {
			respondWithError(w, http.StatusForbidden, "old password does not match")
			return
		}
		acct.password = req.NewPassword
		logger.WithField("username", username).Info("Password changed")
		w.WriteHeader(http.StatusNoContent)
	}
}

func uploadFile(logger *logrus.Logger, store *mockStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "file part is required")
			return
		}
		defer file.Close()

		id := uuid.New().String()
		store.mutex.Lock()
		store.files[id] = header.Size
		store.mutex.Unlock()

		logger.WithFields(logrus.Fields{
			"file_id": id,
			"name":    header.Filename,
			"size":    header.Size,
		}).Info("File uploaded")
		respondWithJSON(w, http.StatusCreated, models.UploadResult{
			ID:  id,
			URL: "/file/" + id,
		})
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"message": message})
}
