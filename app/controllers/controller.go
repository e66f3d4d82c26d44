// Package controllers adapts the services to HTTP. Every handler here runs
// behind middleware.Identity, so the caller's user id is always present.
package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/lister/pkg/bind"
	"github.com/shashiranjanraj/lister/pkg/middleware"
	"github.com/shashiranjanraj/lister/pkg/response"
)

func userID(r *http.Request) string {
	return middleware.UserID(r.Context())
}

// decode binds and validates the JSON body, writing the failure response
// itself. It reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	fields, err := bind.JSON(r, dest)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	if len(fields) > 0 {
		response.ValidationError(w, fields)
		return false
	}
	return true
}
