package service

import (
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/auth"
	"github.com/JimmyLuojun/PlaneWar-Sever/internal/domain/model"
)

// Sentinel kinds for service errors, shared with the packages that own them
// so callers can match either name.
var (
	ErrMissingFields      = model.ErrMissingFields
	ErrInvalidCredentials = auth.ErrInvalidCredentials
)
