package detection

import (
	"DriverWatch/pkg/response"
	"net/http"
)

var (
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
	ErrBadRequest          = response.NewError(http.StatusBadRequest, "bad request")
	ErrInvalidImage        = response.NewError(http.StatusBadRequest, "uploaded file is not a valid image")
	ErrImageTooLarge       = response.NewError(http.StatusRequestEntityTooLarge, "image exceeds upload limit")
	ErrImageDecode         = response.NewError(http.StatusUnprocessableEntity, "image decode error")
	ErrModelInference      = response.NewError(http.StatusBadGateway, "model inference error")
	ErrDetectorUnavailable = response.NewError(http.StatusServiceUnavailable, "detection worker unavailable")
	ErrScratchStorage      = response.NewError(http.StatusInternalServerError, "scratch storage error")
)
