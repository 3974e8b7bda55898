package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MessageResponse represents a Twilio message response
type MessageResponse struct {
	Sid                 string    `json:"sid"`
	DateCreated         time.Time `json:"date_created"`
	DateUpdated         time.Time `json:"date_updated"`
	DateSent            time.Time `json:"date_sent"`
	AccountSid          string    `json:"account_sid"`
	MessagingServiceSid *string   `json:"messaging_service_sid"`
	To                  string    `json:"to"`
	From                string    `json:"from"`
	Body                string    `json:"body"`
	Status              string    `json:"status"`
	NumSegments         string    `json:"num_segments"`
	Direction           string    `json:"direction"`
	APIVersion          string    `json:"api_version"`
	Price               *string   `json:"price"`
	PriceUnit           string    `json:"price_unit"`
	URI                 string    `json:"uri"`
}

// ServiceResponse represents a Messaging Service resource
type ServiceResponse struct {
	Sid          string `json:"sid"`
	AccountSid   string `json:"account_sid"`
	FriendlyName string `json:"friendly_name"`
	URL          string `json:"url"`
}

// ErrorResponse mirrors the Twilio REST error body
type ErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// invalidNumber is Twilio's magic test number for an invalid recipient.
const invalidNumber = "+15005550001"

// MessageStore stores sent messages for verification
type MessageStore struct {
	mu       sync.RWMutex
	messages []MessageResponse
}

func (s *MessageStore) Add(msg MessageResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *MessageStore) GetAll() []MessageResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MessageResponse, len(s.messages))
	copy(result, s.messages)
	return result
}

func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

var store = &MessageStore{}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Comma-separated Messaging Service SIDs that resolve; any SID when empty.
	services := map[string]bool{}
	for _, sid := range strings.Split(os.Getenv("SERVICES"), ",") {
		if sid = strings.TrimSpace(sid); sid != "" {
			services[sid] = true
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", health)
	mux.HandleFunc("GET /health", health)

	// GET /messages - retrieve all sent messages for verification
	mux.HandleFunc("GET /messages", func(w http.ResponseWriter, r *http.Request) {
		messages := store.GetAll()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":    len(messages),
			"messages": messages,
		})
	})
	mux.HandleFunc("DELETE /messages", func(w http.ResponseWriter, r *http.Request) {
		store.Clear()
		w.WriteHeader(http.StatusNoContent)
		log.Printf("Message store cleared")
	})

	mux.HandleFunc("GET /v1/Services/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sid := r.PathValue("sid")
		if len(services) > 0 && !services[sid] {
			log.Printf("404 Not Found: messaging service %s", sid)
			writeJSON(w, http.StatusNotFound, ErrorResponse{
				Code:     20404,
				Message:  fmt.Sprintf("The requested resource /Services/%s was not found", sid),
				MoreInfo: "https://www.twilio.com/docs/errors/20404",
				Status:   http.StatusNotFound,
			})
			return
		}
		writeJSON(w, http.StatusOK, ServiceResponse{
			Sid:          sid,
			AccountSid:   "AC_mock",
			FriendlyName: "mock service " + sid,
			URL:          "/v1/Services/" + sid,
		})
	})

	mux.HandleFunc("POST /2010-04-01/Accounts/{account}/Messages.json", func(w http.ResponseWriter, r *http.Request) {
		accountSid := r.PathValue("account")

		if err := r.ParseForm(); err != nil {
			log.Printf("400 Bad Request: failed to parse form: %v", err)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		to := r.FormValue("To")
		from := r.FormValue("From")
		serviceSid := r.FormValue("MessagingServiceSid")
		body := r.FormValue("Body")

		log.Printf("Received message request: To=%s, From=%s, MessagingServiceSid=%s, Body=%s", to, from, serviceSid, body)

		if to == invalidNumber {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Code:     21211,
				Message:  fmt.Sprintf("The 'To' number %s is not a valid phone number.", to),
				MoreInfo: "https://www.twilio.com/docs/errors/21211",
				Status:   http.StatusBadRequest,
			})
			return
		}
		if from == "" && serviceSid == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Code:     21603,
				Message:  "A 'From' or 'MessagingServiceSid' parameter is required to send a message",
				MoreInfo: "https://www.twilio.com/docs/errors/21603",
				Status:   http.StatusBadRequest,
			})
			return
		}

		now := time.Now().UTC()
		sid := generateMockSid()
		response := MessageResponse{
			Sid:         fmt.Sprintf("SM%s", sid),
			DateCreated: now,
			DateUpdated: now,
			DateSent:    now,
			AccountSid:  accountSid,
			To:          to,
			From:        from,
			Body:        body,
			Status:      "queued",
			NumSegments: fmt.Sprint(numSegments(body)),
			Direction:   "outbound-api",
			APIVersion:  "2010-04-01",
			Price:       nil,
			PriceUnit:   "USD",
			URI:         fmt.Sprintf("/2010-04-01/Accounts/%s/Messages/SM%s.json", accountSid, sid),
		}
		if serviceSid != "" {
			response.MessagingServiceSid = &serviceSid
		}

		// Store the message for verification
		store.Add(response)

		writeJSON(w, http.StatusCreated, response)
	})

	log.Printf("Mock Twilio server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, logNotFound(mux)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "mock-twilio healthy")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// numSegments approximates Twilio's count: 160/153 for ASCII bodies,
// 70/67 otherwise.
func numSegments(body string) int {
	single, part := 160, 153
	for _, r := range body {
		if r >= utf8.RuneSelf {
			single, part = 70, 67
			break
		}
	}
	n := utf8.RuneCountInString(body)
	if n <= single {
		return 1
	}
	return (n + part - 1) / part
}

func logNotFound(next *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := next.Handler(r); pattern == "" {
			log.Printf("404 Not Found: %s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

func generateMockSid() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
