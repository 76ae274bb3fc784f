package handlers

import (
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/response"
)

// RespOK is a generic envelope for endpoints returning no specific data.
type RespOK struct {
	Success bool                     `json:"success"`
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespRetryItems wraps retry.ScanResponse in the standard envelope.
type RespRetryItems struct {
	Success bool                     `json:"success"`
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    retry.ScanResponse       `json:"data"`
}
