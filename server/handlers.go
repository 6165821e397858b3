package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rss-notifier/storage"
)

type emailRequest struct {
	EmailAddress string `json:"email_address" validate:"required,email"`
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, Message{En: "Pong!", Sv: "Pong!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"healthy"}`)
}

// decodeEmailRequest parses and validates the request body. On failure it has
// already written the 400 response and returns ok=false.
func (s *Server) decodeEmailRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	invalid := func(detail string) {
		respond(w, http.StatusBadRequest, Message{
			En: "The following validation error(s) occurred: " + detail,
			Sv: "Datan du skickade har följande fel: " + detail,
		}, detail)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		invalid("No JSON provided in request.")
		return "", false
	}

	var req emailRequest
	if err := json.Unmarshal(body, &req); err != nil {
		invalid("The request body is not valid JSON.")
		return "", false
	}

	if err := s.validate.Struct(req); err != nil {
		invalid("A valid email_address field is required.")
		return "", false
	}

	return strings.ToLower(strings.TrimSpace(req.EmailAddress)), true
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	email, ok := s.decodeEmailRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	logger := s.logger.With("email", email)

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		respond(w, http.StatusConflict, Message{
			En: "The email address is already subscribed.",
			Sv: "Emailaddressen är redan prenumererad.",
		})
		return
	} else if !storage.IsNotFound(err) {
		logger.Error("Subscriber lookup failed", "error", err)
		respond(w, http.StatusInternalServerError, Message{
			En: "Internal server error, please try again later.",
			Sv: "Internt serverfel, vänligen försök igen senare.",
		})
		return
	}

	result, err := s.verifier.CheckEmail(ctx, email)
	if err != nil {
		logger.Error("Email verification failed", "error", err)
		respond(w, http.StatusInternalServerError, Message{
			En: "Internal server error, please try again later.",
			Sv: "Internt serverfel, vänligen försök igen senare.",
		})
		return
	}
	if !result.Valid {
		respond(w, http.StatusBadRequest, Message{
			En: "The email address is not valid. Reason: " + result.Diagnosis,
			Sv: "Emailaddressen är inte giltig. Anledning: " + result.Diagnosis,
		})
		return
	}

	if err := s.store.Create(ctx, email, time.Now().Unix()); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			respond(w, http.StatusConflict, Message{
				En: "The email address is already subscribed.",
				Sv: "Emailaddressen är redan prenumererad.",
			})
			return
		}
		logger.Error("Subscriber creation failed", "error", err)
		respond(w, http.StatusInternalServerError, Message{
			En: "Internal server error, please try again later.",
			Sv: "Internt serverfel, vänligen försök igen senare.",
		})
		return
	}

	logger.Info("Subscriber added")
	respond(w, http.StatusOK, Message{
		En: "Email added successfully.",
		Sv: "Mejladressen har lagts till.",
	})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email, ok := s.decodeEmailRequest(w, r)
	if !ok {
		return
	}

	logger := s.logger.With("email", email)

	if err := s.store.Delete(r.Context(), email); err != nil {
		if storage.IsNotFound(err) {
			respond(w, http.StatusBadRequest, Message{
				En: "It seems like the requested email address is not subscribed.",
				Sv: "Det verkar inte som att den efterfrågade mejladressen är prenumererad.",
			})
			return
		}
		logger.Error("Subscriber deletion failed", "error", err)
		respond(w, http.StatusInternalServerError, Message{
			En: "Internal server error, please try again later.",
			Sv: "Internt serverfel, vänligen försök igen senare.",
		})
		return
	}

	logger.Info("Subscriber removed")
	respond(w, http.StatusOK, Message{
		En: "The email was successfully unsubscribed.",
		Sv: "Mailaddressen har avprenumererats.",
	})
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request) {
	if !s.runner.Trigger() {
		respond(w, http.StatusAccepted, Message{
			En: "A notification run is already in progress.",
			Sv: "En notifieringskörning pågår redan.",
		})
		return
	}

	respond(w, http.StatusAccepted, Message{
		En: "Notification run started.",
		Sv: "Notifieringskörningen har startats.",
	})
}
