package stub

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Failure codes reported in the envelope's "code" field.
const (
	CodeInvalidArgument = 1
	CodeInvalidUserKey  = 2
	CodeInvalidForumKey = 3
	CodeObjectNotFound  = 4
	CodeInternal        = 5
)

type envelope struct {
	Succeeded bool `json:"succeeded"`
	Message   any  `json:"message"`
	Code      int  `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, message any) {
	writeJSON(w, http.StatusOK, envelope{Succeeded: true, Message: message})
}

// writeFailure reports an application failure. The remote service answers
// these with HTTP 200 and succeeded=false.
func writeFailure(w http.ResponseWriter, code int, message string) {
	writeJSON(w, http.StatusOK, envelope{Succeeded: false, Message: message, Code: code})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrArgumentRequired):
		writeFailure(w, CodeInvalidArgument, err.Error())
	case errors.Is(err, ErrUserNotFound):
		writeFailure(w, CodeInvalidUserKey, err.Error())
	case errors.Is(err, ErrForumKeyInvalid):
		writeFailure(w, CodeInvalidForumKey, err.Error())
	case errors.Is(err, ErrForumNotFound), errors.Is(err, ErrThreadNotFound), errors.Is(err, ErrParentPostNotFound):
		writeFailure(w, CodeObjectNotFound, err.Error())
	default:
		writeFailure(w, CodeInternal, err.Error())
	}
}
